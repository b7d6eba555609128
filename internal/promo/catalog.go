package promo

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk layout read by LoadCatalog.
//
//	codes:
//	  - hash: 1305821e52ea...
//	    amount: "100"
//	    kind: one-time
//	  - code: SPRING25
//	    amount: "25"
//	    kind: limited
//	    uses: 50
type catalogFile struct {
	Codes []catalogEntry `yaml:"codes"`
}

type catalogEntry struct {
	Hash   string `yaml:"hash"`
	Code   string `yaml:"code"`
	Amount string `yaml:"amount"`
	Kind   Kind   `yaml:"kind"`
	Uses   int    `yaml:"uses"`
}

// LoadCatalog reads a YAML code table. Entries name either the digest or
// the plain code; plain codes are hashed on load and never kept.
func LoadCatalog(path string) (Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read promo catalog: %w", err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes a YAML code table.
func ParseCatalog(raw []byte) (Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse promo catalog: %w", err)
	}

	catalog := make(Catalog, len(file.Codes))
	for i, e := range file.Codes {
		hash, err := e.digest()
		if err != nil {
			return nil, fmt.Errorf("promo catalog entry %d: %w", i, err)
		}
		amount, err := decimal.NewFromString(e.Amount)
		if err != nil {
			return nil, fmt.Errorf("promo catalog entry %d: invalid amount %q: %w", i, e.Amount, err)
		}
		if !amount.IsPositive() {
			return nil, fmt.Errorf("promo catalog entry %d: amount must be positive", i)
		}
		switch e.Kind {
		case OneTime, Eternal:
		case Limited:
			if e.Uses <= 0 {
				return nil, fmt.Errorf("promo catalog entry %d: limited code needs uses > 0", i)
			}
		default:
			return nil, fmt.Errorf("promo catalog entry %d: unknown kind %q", i, e.Kind)
		}
		if _, dup := catalog[hash]; dup {
			return nil, fmt.Errorf("promo catalog entry %d: duplicate code", i)
		}
		catalog[hash] = Code{Amount: amount, Kind: e.Kind, Uses: e.Uses}
	}
	return catalog, nil
}

func (e catalogEntry) digest() (string, error) {
	switch {
	case e.Hash != "" && e.Code != "":
		return "", fmt.Errorf("set either hash or code, not both")
	case e.Code != "":
		if strings.TrimSpace(e.Code) == "" {
			return "", ErrEmptyCode
		}
		return HashCode(e.Code), nil
	case e.Hash != "":
		h := strings.ToLower(e.Hash)
		if b, err := hex.DecodeString(h); err != nil || len(b) != 32 {
			return "", fmt.Errorf("hash must be a sha-256 hex digest")
		}
		return h, nil
	}
	return "", fmt.Errorf("missing hash or code")
}
