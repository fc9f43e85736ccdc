package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"SpiceStore/internal/cart"
	"SpiceStore/internal/catalog"
	"SpiceStore/pkg/kit"
)

type PortalConfig struct {
	Minimum  int           `koanf:"minimum"`
	Required []string      `koanf:"required"`
	Delay    time.Duration `koanf:"delay"`
}

type Storefront struct {
	Server   HTTPConfig     `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	Nats     struct {
		URL string `koanf:"url"`
	} `koanf:"nats"`
	Catalog struct {
		URL     string        `koanf:"url"`
		Refresh time.Duration `koanf:"refresh"`
	} `koanf:"catalog"`
	Session struct {
		Secret string        `koanf:"secret"`
		TTL    time.Duration `koanf:"ttl"`
		Idle   time.Duration `koanf:"idle"`
		Sweep  time.Duration `koanf:"sweep"`
	} `koanf:"session"`
	Portals map[string]PortalConfig `koanf:"portals"`
}

func StorefrontDefaults() map[string]any {
	return merge(commonDefaults(8081), map[string]any{
		"catalog.refresh":            30 * time.Second,
		"session.ttl":                24 * time.Hour,
		"session.idle":               2 * time.Hour,
		"session.sweep":              5 * time.Minute,
		"portals.retail.minimum":     3,
		"portals.retail.required":    []string{cart.FieldName, cart.FieldPhone, cart.FieldAddress},
		"portals.retail.delay":       cart.DefaultProcessingDelay,
		"portals.wholesale.minimum":  1,
		"portals.wholesale.required": []string{},
		"portals.wholesale.delay":    cart.DefaultProcessingDelay,
	})
}

func LoadStorefront() (Storefront, error) {
	return Load[Storefront](Source{Service: "storefront", Defaults: StorefrontDefaults()})
}

func (c Storefront) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if len(c.Session.Secret) < 32 {
		return errors.New("session.secret is required and must be at least 32 chars")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("invalid session ttl: %v", c.Session.TTL)
	}
	if c.Session.Sweep <= 0 || c.Session.Idle <= 0 {
		return errors.New("session.sweep and session.idle must be positive")
	}
	if len(c.Portals) == 0 {
		return errors.New("no portals configured")
	}

	for name, p := range c.Portals {
		if !catalog.KnownPortal(name) {
			return fmt.Errorf("unknown portal %q", name)
		}
		if err := c.policy(name, p).Validate(); err != nil {
			return fmt.Errorf("portal %s: %w", name, err)
		}
		if p.Delay < 0 {
			return fmt.Errorf("portal %s: negative checkout delay", name)
		}
		if w := c.Server.Timeout.Write; w > 0 && w <= p.Delay {
			return fmt.Errorf("portal %s: server write timeout %v must exceed checkout delay %v", name, w, p.Delay)
		}
	}
	return nil
}

func (c Storefront) policy(name string, p PortalConfig) cart.Policy {
	required := make([]string, 0, len(p.Required))
	for _, f := range p.Required {
		if f = strings.TrimSpace(f); f != "" {
			required = append(required, f)
		}
	}
	return cart.Policy{Portal: name, MinOrderQuantity: p.Minimum, RequiredFields: required}
}

// Policies returns the cart policy of every configured portal.
func (c Storefront) Policies() map[string]cart.Policy {
	out := make(map[string]cart.Policy, len(c.Portals))
	for name, p := range c.Portals {
		out[name] = c.policy(name, p)
	}
	return out
}

type Catalog struct {
	Server   HTTPConfig     `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	Seed     bool           `koanf:"seed"`
}

func LoadCatalog() (Catalog, error) {
	return Load[Catalog](Source{Service: "catalog", Defaults: merge(commonDefaults(8082), map[string]any{"seed": true})})
}

func (c Catalog) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	return c.Database.Validate()
}

type Gateway struct {
	Server    HTTPConfig    `koanf:"server"`
	Log       LogConfig     `koanf:"log"`
	Metrics   MetricsConfig `koanf:"metrics"`
	Upstreams struct {
		Catalog    string `koanf:"catalog"`
		Storefront string `koanf:"storefront"`
	} `koanf:"upstreams"`
	RateLimit struct {
		Sessions int           `koanf:"sessions"`
		Window   time.Duration `koanf:"window"`
	} `koanf:"ratelimit"`
}

func LoadGateway() (Gateway, error) {
	return Load[Gateway](Source{Service: "gateway", Defaults: merge(commonDefaults(8080), map[string]any{
		"upstreams.catalog":    "http://catalog:8082",
		"upstreams.storefront": "http://storefront:8081",
		"ratelimit.sessions":   10,
		"ratelimit.window":     time.Minute,
	})})
}

func (c Gateway) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if c.Upstreams.Catalog == "" || c.Upstreams.Storefront == "" {
		return errors.New("upstreams.catalog and upstreams.storefront are required")
	}
	if c.RateLimit.Sessions > 0 && c.RateLimit.Window <= 0 {
		return fmt.Errorf("invalid rate limit window: %v", c.RateLimit.Window)
	}
	return nil
}

// ServerConfig adapts the HTTP section for kit.RunHTTPServer.
func (c HTTPConfig) ServerConfig() kit.ServerConfig {
	return kit.ServerConfig{
		Addr:              c.Addr(),
		ReadHeaderTimeout: c.Timeout.ReadHeader,
		ReadTimeout:       c.Timeout.Read,
		WriteTimeout:      c.Timeout.Write,
		IdleTimeout:       c.Timeout.Idle,
		ShutdownTimeout:   c.Timeout.Shutdown,
	}
}

func (c Storefront) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "server.port=%d log.level=%s database.url=%s nats.url=%s catalog.url=%s",
		c.Server.Port, c.Log.Level, maskURL(c.Database.URL), c.Nats.URL, c.Catalog.URL)
	for name, p := range c.Portals {
		fmt.Fprintf(&b, " portals.%s={minimum=%d required=%v delay=%v}", name, p.Minimum, p.Required, p.Delay)
	}
	return b.String()
}
