package params

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Catalog lists the goods opened at startup and the agents' opening
// endowments.
//
//	goods:
//	  - name: Arroz
//	    reference_price: "10.00"
//	agents:
//	  - name: C1
//	    cash: "1000"
//	  - name: E1
//	    inventory: {Arroz: 20}
type Catalog struct {
	Goods  []Good  `yaml:"goods"`
	Agents []Agent `yaml:"agents"`
}

type Good struct {
	Name           string          `yaml:"name"`
	ReferencePrice decimal.Decimal `yaml:"reference_price"`
}

type Agent struct {
	Name      string           `yaml:"name"`
	Cash      decimal.Decimal  `yaml:"cash"`
	Inventory map[string]int64 `yaml:"inventory"`
}

// GoodNames returns the catalog's goods in file order.
func (c Catalog) GoodNames() []string {
	names := make([]string, 0, len(c.Goods))
	for _, g := range c.Goods {
		names = append(names, g.Name)
	}
	return names
}

// LoadGoods reads and validates a catalog file.
func LoadGoods(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read goods file: %w", err)
	}
	return ParseGoods(data)
}

func ParseGoods(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse goods yaml: %w", err)
	}

	seen := make(map[string]bool, len(c.Goods))
	for i, g := range c.Goods {
		if g.Name == "" {
			return Catalog{}, fmt.Errorf("goods[%d]: name is required", i)
		}
		if seen[g.Name] {
			return Catalog{}, fmt.Errorf("goods[%d]: duplicate good %q", i, g.Name)
		}
		seen[g.Name] = true
		if g.ReferencePrice.IsNegative() {
			return Catalog{}, fmt.Errorf("good %s: reference price cannot be negative", g.Name)
		}
	}
	for i, a := range c.Agents {
		if a.Name == "" {
			return Catalog{}, fmt.Errorf("agents[%d]: name is required", i)
		}
		if a.Cash.IsNegative() {
			return Catalog{}, fmt.Errorf("agent %s: cash cannot be negative", a.Name)
		}
	}
	return c, nil
}
