package graph

import (
	"github.com/xarxa-labs/xarxa/internal/config"
)

// ---------------------------------------------------------------------------
// Exchange wallet directory: known entity addresses and their labels
// ---------------------------------------------------------------------------

// Entity is a labelled owner of one or more wallets.
type Entity struct {
	Name    string   `yaml:"name" json:"name"`
	Role    Role     `yaml:"role" json:"role"`
	Wallets []string `yaml:"wallets" json:"wallets"`
}

// Directory maps wallets to entities while keeping declaration order, so
// graph construction and per-entity reports are reproducible.
type Directory struct {
	entities []Entity
	byWallet map[string]int // wallet -> index into entities
}

// NewDirectory builds a directory. Entities without a role are exchanges;
// a wallet listed twice stays with its first entity.
func NewDirectory(entities []Entity) *Directory {
	d := &Directory{byWallet: make(map[string]int)}
	for _, e := range entities {
		if e.Role == "" {
			e.Role = RoleExchange
		}
		wallets := make([]string, 0, len(e.Wallets))
		for _, w := range e.Wallets {
			if w == "" {
				continue
			}
			if _, dup := d.byWallet[w]; dup {
				continue
			}
			d.byWallet[w] = len(d.entities)
			wallets = append(wallets, w)
		}
		e.Wallets = wallets
		d.entities = append(d.entities, e)
	}
	return d
}

// Lookup returns the entity owning address.
func (d *Directory) Lookup(address string) (Entity, bool) {
	i, ok := d.byWallet[address]
	if !ok {
		return Entity{}, false
	}
	return d.entities[i], true
}

// IsLabelled reports whether address belongs to a known entity.
func (d *Directory) IsLabelled(address string) bool {
	_, ok := d.byWallet[address]
	return ok
}

// Entities returns the entities in declaration order.
func (d *Directory) Entities() []Entity {
	out := make([]Entity, len(d.entities))
	copy(out, d.entities)
	return out
}

// Wallets returns every wallet in declaration order.
func (d *Directory) Wallets() []string {
	out := make([]string, 0, len(d.byWallet))
	for _, e := range d.entities {
		out = append(out, e.Wallets...)
	}
	return out
}

// WalletCount returns the number of known wallets.
func (d *Directory) WalletCount() int {
	return len(d.byWallet)
}

// DefaultDirectory returns the public Bitcoin exchange wallets the flow
// report is seeded with.
func DefaultDirectory() *Directory {
	return NewDirectory(defaultExchanges)
}

// DirectoryFromConfig builds the directory from configured exchanges, or
// returns DefaultDirectory when none are configured.
func DirectoryFromConfig(exchanges []config.ExchangeConfig) *Directory {
	if len(exchanges) == 0 {
		return DefaultDirectory()
	}
	entities := make([]Entity, 0, len(exchanges))
	for _, ex := range exchanges {
		entities = append(entities, Entity{Name: ex.Name, Role: RoleExchange, Wallets: ex.Wallets})
	}
	return NewDirectory(entities)
}

var defaultExchanges = []Entity{
	{Name: "Binance", Wallets: []string{
		"1NDyJtNTjmwk5xPNhjgAMu4HDHigtobu1s",
		"bc1qvyh7vggj3qsqf8sg5v7t9fvfhv9p9a5qsw9p4k",
	}},
	{Name: "Coinbase", Wallets: []string{
		"3LYJfcfHPXYJreMsASk7LZQ9gH9yJz3e2U",
		"1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
	}},
	{Name: "Kraken", Wallets: []string{
		"3KUhH7Mg7Uq4Gr3yXSCPSnP8bvt6Zux6p7",
		"1BoatSLRHtKNngkdXEeobR76b53LETtpyT",
	}},
	{Name: "Poloniex", Wallets: []string{
		"17A16QmavnUfCW11DAApiJxp7ARnxN5pGX",
	}},
	{Name: "Bitstamp", Wallets: []string{
		"3Nxwenay9Z8Lc9JBiywExpnEFiLp6Afp8v", // cold wallet
	}},
	{Name: "Huobi", Wallets: []string{
		"3Cbq7aT1tY8kMxWLbitaG7yT6bPbKChq64",
	}},
}
