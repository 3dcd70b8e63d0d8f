package service

import (
	"paybridge/internal/config"
	"paybridge/internal/model"
)

// TariffCatalog 套餐目录，启动时从配置加载，运行期只读
type TariffCatalog struct {
	ordered []*model.Tariff
	byID    map[string]*model.Tariff
}

func NewTariffCatalog(tariffs []config.TariffConfig) *TariffCatalog {
	c := &TariffCatalog{
		ordered: make([]*model.Tariff, 0, len(tariffs)),
		byID:    make(map[string]*model.Tariff, len(tariffs)),
	}
	for _, t := range tariffs {
		tariff := &model.Tariff{
			ID:            t.ID,
			Name:          t.Name,
			Price:         t.Price,
			Currency:      t.Currency,
			PremiumTokens: t.PremiumTokens,
			Images:        t.Images,
		}
		if tariff.Currency == "" {
			tariff.Currency = "RUB"
		}
		c.ordered = append(c.ordered, tariff)
		c.byID[t.ID] = tariff
	}
	return c
}

// Get 按 PaymentRecord.TariffID 解析套餐
func (c *TariffCatalog) Get(id string) (*model.Tariff, bool) {
	t, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}

func (c *TariffCatalog) List() []model.Tariff {
	out := make([]model.Tariff, 0, len(c.ordered))
	for _, t := range c.ordered {
		out = append(out, *t)
	}
	return out
}
