package remote

import (
	"context"
	"net/http"
	"strings"

	"github.com/JakeFAU/brightdata-go/pkg/sdkerr"
	"github.com/JakeFAU/brightdata-go/pkg/zone"
)

const (
	pathActiveZones = "/zone/get_active_zones"
	pathZone        = "/zone"
	endpointZones   = "/zone/get_active_zones"
)

// ZoneAPI implements zone.API.
type ZoneAPI struct {
	c *Client
}

// Zones returns the zone API.
func (c *Client) Zones() *ZoneAPI {
	return &ZoneAPI{c: c}
}

// List returns the account's active zones.
func (z *ZoneAPI) List(ctx context.Context) ([]zone.Zone, error) {
	resp, err := z.c.do(ctx, call{endpoint: endpointZones, method: http.MethodGet, path: pathActiveZones})
	if err != nil {
		return nil, err
	}
	if err := check(resp, "zone list"); err != nil {
		return nil, err
	}
	var zones []zone.Zone
	if len(strings.TrimSpace(string(resp.body))) == 0 {
		return []zone.Zone{}, nil
	}
	if err := decodeJSON(resp, &zones, "zone list"); err != nil {
		return nil, err
	}
	if zones == nil {
		zones = []zone.Zone{}
	}
	return zones, nil
}

type createZoneRequest struct {
	Plan map[string]any `json:"plan"`
	Zone struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"zone"`
}

// Create provisions a zone. SERP zones are unblocker plans with serp enabled.
func (z *ZoneAPI) Create(ctx context.Context, name string, typ zone.Type) (zone.CreateOutcome, error) {
	var body createZoneRequest
	if typ == zone.TypeSERP {
		body.Plan = map[string]any{"type": string(zone.TypeUnblocker), "serp": true}
	} else {
		body.Plan = map[string]any{"type": string(typ)}
	}
	body.Zone.Name = name
	body.Zone.Type = string(typ)

	resp, err := z.c.do(ctx, call{endpoint: pathZone, method: http.MethodPost, path: pathZone, body: body})
	if err != nil {
		return "", err
	}
	text := strings.ToLower(resp.text())
	switch {
	case resp.status == http.StatusOK || resp.status == http.StatusCreated:
		return zone.Created, nil
	case resp.status == http.StatusConflict,
		strings.Contains(text, "duplicate"),
		strings.Contains(text, "already exists"):
		return zone.Exists, nil
	case resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden:
		if strings.Contains(text, "permission") || strings.Contains(text, "lacks the required") {
			return zone.Denied, nil
		}
		return "", check(resp, "zone create")
	case resp.status == http.StatusBadRequest:
		return "", &sdkerr.ZoneError{Zone: name, Message: "bad request creating zone: " + resp.text()}
	default:
		return "", check(resp, "zone create")
	}
}

// Delete removes a zone.
func (z *ZoneAPI) Delete(ctx context.Context, name string) (zone.DeleteOutcome, error) {
	body := map[string]string{"zone": name}
	resp, err := z.c.do(ctx, call{endpoint: pathZone, method: http.MethodDelete, path: pathZone, body: body})
	if err != nil {
		return "", err
	}
	text := strings.ToLower(resp.text())
	switch {
	case resp.ok():
		return zone.Deleted, nil
	case resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden:
		return zone.DeleteDenied, nil
	case resp.status == http.StatusBadRequest,
		resp.status == http.StatusNotFound:
		if strings.Contains(text, "not found") || strings.Contains(text, "does not exist") ||
			resp.status == http.StatusNotFound {
			return zone.NotFound, nil
		}
		return "", &sdkerr.ZoneError{Zone: name, Message: "bad request deleting zone: " + resp.text()}
	default:
		return "", check(resp, "zone delete")
	}
}
