package params

import (
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/uhyunpark/orderswap/pkg/app/swap"
)

// TokenParams describes a token ledger registered at startup
type TokenParams struct {
	Symbol   string
	Name     string
	Decimals uint8
}

type Node struct {
	ListenAddr string // API listen address
	DBPath     string // Pebble database directory
	LogFile    string
}

type Escrow struct {
	// Custody is the principal holding escrowed deposits. It is also the
	// spender principals approve before createOrder/fulfilOrder can pull.
	Custody common.Address
}

type Faucet struct {
	// Enabled turns on the dev faucet endpoint (never in production)
	Enabled bool
	// Amount minted per faucet request
	Amount int64
}

type Config struct {
	Node   Node
	Escrow Escrow
	Faucet Faucet
	Tokens []TokenParams
}

func Default() Config {
	return Config{
		Node: Node{
			ListenAddr: ":8080",
			DBPath:     "data/orders.db",
			LogFile:    "data/swapd.log",
		},
		Escrow: Escrow{
			Custody: swap.DefaultCustody,
		},
		Faucet: Faucet{
			Enabled: false,
			Amount:  100,
		},
		Tokens: []TokenParams{
			{Symbol: "GUZ", Name: "Guz Token", Decimals: 18},
			{Symbol: "W3C", Name: "Web3 Coin", Decimals: 18},
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		cfg.Node.ListenAddr = addr
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		cfg.Node.DBPath = path
	}
	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		cfg.Node.LogFile = logFile
	}

	if custody := os.Getenv("ESCROW_CUSTODY"); custody != "" && common.IsHexAddress(custody) {
		cfg.Escrow.Custody = common.HexToAddress(custody)
	}

	if faucet := os.Getenv("ENABLE_FAUCET"); faucet != "" {
		cfg.Faucet.Enabled = faucet == "true"
	}
	if amount := os.Getenv("FAUCET_AMOUNT"); amount != "" {
		if n, err := strconv.ParseInt(amount, 10, 64); err == nil && n > 0 {
			cfg.Faucet.Amount = n
		}
	}

	// Tokens from comma-separated "SYMBOL:Name" pairs
	// Example: TOKENS="GUZ:Guz Token,W3C:Web3 Coin"
	if tokens := os.Getenv("TOKENS"); tokens != "" {
		var parsed []TokenParams
		for _, entry := range strings.Split(tokens, ",") {
			symbol, name, ok := strings.Cut(strings.TrimSpace(entry), ":")
			if !ok || symbol == "" {
				continue
			}
			parsed = append(parsed, TokenParams{Symbol: symbol, Name: name, Decimals: 18})
		}
		if len(parsed) > 0 {
			cfg.Tokens = parsed
		}
	}

	return cfg
}
