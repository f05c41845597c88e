package brightdata

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/brightdata-go/pkg/zone"
)

// AccountInfo summarizes the account behind the client's token.
type AccountInfo struct {
	CustomerID  string      `json:"customer_id,omitempty"`
	Zones       []zone.Zone `json:"zones"`
	ZoneCount   int         `json:"zone_count"`
	TokenValid  bool        `json:"token_valid"`
	RetrievedAt time.Time   `json:"retrieved_at"`
}

// AccountInfo returns the account summary. The first call fetches it; later
// calls reuse the cached copy unless refresh is set.
func (c *Client) AccountInfo(ctx context.Context, refresh bool) (AccountInfo, error) {
	c.accountMu.Lock()
	defer c.accountMu.Unlock()

	if c.account != nil && !refresh {
		return c.account.clone(), nil
	}
	zones, err := c.zones.ListZones(ctx, true)
	if err != nil {
		return AccountInfo{}, err
	}
	info := &AccountInfo{
		CustomerID:  c.cfg.CustomerID,
		Zones:       zones,
		ZoneCount:   len(zones),
		TokenValid:  true,
		RetrievedAt: c.clock.Now(),
	}
	c.account = info
	c.logger.Debug("account info refreshed", zap.Int("zones", info.ZoneCount))
	return info.clone(), nil
}

// InvalidateAccountInfo drops the cached account summary.
func (c *Client) InvalidateAccountInfo() {
	c.accountMu.Lock()
	c.account = nil
	c.accountMu.Unlock()
}

func (a *AccountInfo) clone() AccountInfo {
	out := *a
	out.Zones = make([]zone.Zone, len(a.Zones))
	copy(out.Zones, a.Zones)
	return out
}
