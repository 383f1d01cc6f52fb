package directory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/grabngo/loaner/internal/apperr"
	"golang.org/x/oauth2/google"
	admin "google.golang.org/api/admin/directory/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// AdminConfig holds Admin SDK connection settings
type AdminConfig struct {
	CustomerID      string
	CredentialsFile string
	// AdminEmail is impersonated through domain-wide delegation
	AdminEmail string
}

// AdminClient implements Client over the Google Admin SDK Directory API
type AdminClient struct {
	svc      *admin.Service
	customer string
}

// NewAdminClient builds a directory client from a service account key
func NewAdminClient(ctx context.Context, cfg AdminConfig) (*AdminClient, error) {
	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory credentials: %w", err)
	}

	jwtCfg, err := google.JWTConfigFromJSON(data,
		admin.AdminDirectoryDeviceChromeosScope,
		admin.AdminDirectoryGroupMemberReadonlyScope,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse directory credentials: %w", err)
	}
	jwtCfg.Subject = cfg.AdminEmail

	svc, err := admin.NewService(ctx, option.WithTokenSource(jwtCfg.TokenSource(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create directory service: %w", err)
	}

	customer := cfg.CustomerID
	if customer == "" {
		customer = "my_customer"
	}
	return &AdminClient{svc: svc, customer: customer}, nil
}

// GetByID fetches a device by its directory id
func (c *AdminClient) GetByID(ctx context.Context, deviceID string) (*Device, error) {
	d, err := c.svc.Chromeosdevices.Get(c.customer, deviceID).Context(ctx).Do()
	if err != nil {
		return nil, classify(err, deviceID)
	}
	return fromAdmin(d), nil
}

// GetBySerial finds a device by serial number
func (c *AdminClient) GetBySerial(ctx context.Context, serial string) (*Device, error) {
	return c.search(ctx, "id:"+serial, serial)
}

// GetByAssetTag finds a device by annotated asset id
func (c *AdminClient) GetByAssetTag(ctx context.Context, assetTag string) (*Device, error) {
	return c.search(ctx, "asset_id:"+assetTag, assetTag)
}

func (c *AdminClient) search(ctx context.Context, query, ident string) (*Device, error) {
	resp, err := c.svc.Chromeosdevices.List(c.customer).
		Query(query).
		Projection("BASIC").
		MaxResults(2).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(err, ident)
	}
	if len(resp.Chromeosdevices) == 0 {
		return nil, apperr.ErrDeviceNotFoundInDirectory.Withf("%s", ident)
	}
	if len(resp.Chromeosdevices) > 1 {
		log.Printf("⚠️  Directory query %q matched %d devices, using the first", query, len(resp.Chromeosdevices))
	}
	return fromAdmin(resp.Chromeosdevices[0]), nil
}

// MoveToOU moves the device into an organizational unit
func (c *AdminClient) MoveToOU(ctx context.Context, deviceID, orgUnitPath string) error {
	req := &admin.ChromeOsMoveDevicesToOu{DeviceIds: []string{deviceID}}
	if err := c.svc.Chromeosdevices.MoveDevicesToOu(c.customer, orgUnitPath, req).Context(ctx).Do(); err != nil {
		return classify(err, deviceID)
	}
	return nil
}

// Disable disables the device
func (c *AdminClient) Disable(ctx context.Context, deviceID string) error {
	return c.action(ctx, deviceID, "disable")
}

// Reenable re-enables a disabled device
func (c *AdminClient) Reenable(ctx context.Context, deviceID string) error {
	return c.action(ctx, deviceID, "reenable")
}

func (c *AdminClient) action(ctx context.Context, deviceID, action string) error {
	req := &admin.ChromeOsDeviceAction{Action: action}
	if err := c.svc.Chromeosdevices.Action(c.customer, deviceID, req).Context(ctx).Do(); err != nil {
		return classify(err, deviceID)
	}
	return nil
}

// ListGroupMembers returns the e-mail addresses of a group's user members
func (c *AdminClient) ListGroupMembers(ctx context.Context, groupEmail string) ([]string, error) {
	var emails []string
	err := c.svc.Members.List(groupEmail).Pages(ctx, func(page *admin.Members) error {
		for _, m := range page.Members {
			if m.Type == "USER" && m.Email != "" {
				emails = append(emails, strings.ToLower(m.Email))
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperr.ErrDirectoryRPC.Wrap(err)
	}
	return emails, nil
}

func fromAdmin(d *admin.ChromeOsDevice) *Device {
	return &Device{
		DeviceID:     d.DeviceId,
		SerialNumber: d.SerialNumber,
		AssetTag:     d.AnnotatedAssetId,
		Model:        d.Model,
		OrgUnitPath:  d.OrgUnitPath,
		Status:       d.Status,
	}
}

func classify(err error, ident string) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return apperr.ErrDeviceNotFoundInDirectory.Withf("%s", ident)
	}
	return apperr.ErrDirectoryRPC.Wrap(err)
}
