// Package controller applies themes to a page. It loads the runtime config,
// injects the chosen theme's stylesheet with color overrides, marks the
// body with theme classes, and stamps a fade-in animation on cards added
// after injection.
package controller

import (
	"context"
	"errors"
	"maps"
	"strings"
	"sync"

	"github.com/HerbHall/mediatheme/internal/clientconfig"
	"github.com/HerbHall/mediatheme/internal/dom"
	"github.com/HerbHall/mediatheme/internal/event"
	"github.com/HerbHall/mediatheme/internal/theme"
	"go.uber.org/zap"
)

// Bus topics published by the controller.
const (
	TopicInitialized  = "enhancer.initialized"
	TopicThemeChanged = "enhancer.theme_changed"
)

// Document event types.
const (
	EventInitialized  = "emby-enhancer:initialized"
	EventThemeChanged = "emby-enhancer:theme-changed"
)

// FadeInAnimation is stamped on cards added to the page.
const FadeInAnimation = "fadeIn 0.3s ease-out"

// cardClasses identify the elements that get FadeInAnimation.
var cardClasses = []string{"card", "cardBox"}

// ThemeChanged is the payload of enhancer.theme_changed.
type ThemeChanged struct {
	Theme string `json:"theme"`
}

// Initialized is the payload of enhancer.initialized.
type Initialized struct {
	Theme   string `json:"theme"`
	Version string `json:"version"`
}

// Catalog lists the registered themes. *theme.Registry implements it.
type Catalog interface {
	Get(id string) (theme.Theme, error)
	List() []theme.Theme
}

// ConfigStore loads and persists the runtime config.
// *clientconfig.Manager implements it.
type ConfigStore interface {
	Load(ctx context.Context) clientconfig.Config
	Save(ctx context.Context, cfg clientconfig.Config) (clientconfig.Config, error)
}

// ConfigPorter resets, exports, imports, and edits the stored runtime config
// by path. *clientconfig.Manager implements it.
type ConfigPorter interface {
	Reset(ctx context.Context) (clientconfig.Config, error)
	Export(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, data []byte) (clientconfig.Config, error)
	GetValue(ctx context.Context, path string) (any, bool)
	SetValue(ctx context.Context, path string, value any) (clientconfig.Config, error)
	ClearCache() error
}

// ErrNoPorter is returned by the config transfer methods when the config
// store does not implement ConfigPorter.
var ErrNoPorter = errors.New("config store does not support export, import, or reset")

// Controller drives theme application on one Document.
type Controller struct {
	mu sync.Mutex

	doc     dom.Document
	catalog Catalog
	css     CSSSource
	store   ConfigStore
	porter  ConfigPorter
	bus     event.Publisher
	logger  *zap.Logger

	state     State
	cfg       clientconfig.Config
	unobserve []func()
}

// Option configures a Controller.
type Option func(*Controller)

// WithCSSSource sets where stylesheets come from. By default the catalog
// is used when it implements CSSSource.
func WithCSSSource(src CSSSource) Option {
	return func(c *Controller) { c.css = src }
}

// WithPublisher publishes controller events to bus.
func WithPublisher(bus event.Publisher) Option {
	return func(c *Controller) { c.bus = bus }
}

// WithLogger sets the controller logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New creates a controller for doc. It does nothing until Setup.
func New(doc dom.Document, catalog Catalog, store ConfigStore, opts ...Option) *Controller {
	c := &Controller{
		doc:     doc,
		catalog: catalog,
		store:   store,
		logger:  zap.NewNop(),
		cfg:     clientconfig.Defaults(),
	}
	if src, ok := catalog.(CSSSource); ok {
		c.css = src
	}
	if p, ok := store.(ConfigPorter); ok {
		c.porter = p
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the lifecycle stage.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Setup loads the config, applies its theme, starts the card observer, and
// injects the enhancement stylesheet. Failures are logged; the controller
// always ends up ready.
func (c *Controller) Setup(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setupLocked(ctx)
}

func (c *Controller) setupLocked(ctx context.Context) {
	if c.state != StateUninitialized {
		c.cleanupLocked()
	}

	c.state = StateLoadingConfig
	c.cfg = c.store.Load(ctx)
	c.debug("config loaded",
		zap.String("theme", c.cfg.CurrentTheme),
		zap.Bool("customization", c.cfg.EnableCustomization),
	)

	c.state = StateApplyingTheme
	if err := c.applyLocked(ctx, c.cfg.CurrentTheme); err != nil {
		c.logger.Error("applying configured theme failed", zap.String("theme", c.cfg.CurrentTheme), zap.Error(err))
	}

	c.unobserve = append(c.unobserve, c.doc.Observe(StampCards))
	c.doc.InjectStyle(theme.EnhancerStyleID, theme.EnhancerCSS)

	c.state = StateReady
	c.debug("enhancer initialized")
	c.notify(ctx, EventInitialized, TopicInitialized, Initialized{
		Theme:   c.cfg.CurrentTheme,
		Version: c.cfg.Version,
	})
}

// ApplyTheme switches the page to theme id. An unregistered id returns an
// error wrapping theme.ErrUnknownTheme and leaves the page untouched.
func (c *Controller) ApplyTheme(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.state
	c.state = StateApplyingTheme
	defer func() { c.state = prev }()

	err := c.applyLocked(ctx, id)
	if err != nil {
		c.logger.Error("theme apply failed", zap.String("theme", id), zap.Error(err))
	}
	return err
}

func (c *Controller) applyLocked(ctx context.Context, id string) error {
	t, err := c.catalog.Get(id)
	if err != nil {
		themeApplies.WithLabelValues("unknown", "unknown").Inc()
		return err
	}

	c.removeThemeLocked()

	result := "ok"
	css, err := c.fetchCSS(ctx, id)
	if err != nil {
		result = "css_unavailable"
		c.logger.Error("loading theme CSS failed", zap.String("theme", id), zap.Error(err))
		css = ""
	}
	if c.cfg.EnableCustomization && len(c.cfg.CustomColors) > 0 {
		css = theme.ApplyCustomColors(css, c.cfg.CustomColors)
	}
	c.doc.InjectStyle(theme.StyleID(id), css)

	c.cfg.CurrentTheme = id
	if _, err := c.store.Save(ctx, c.cfg); err != nil {
		c.logger.Error("saving config failed", zap.Error(err))
	}

	c.doc.AddBodyClass(theme.StyleID(id), theme.StyleIDPrefix+t.Category)
	themeApplies.WithLabelValues(id, result).Inc()
	c.debug("theme applied", zap.String("theme", id), zap.String("name", t.Name))

	c.notify(ctx, EventThemeChanged, TopicThemeChanged, ThemeChanged{Theme: id})
	return nil
}

func (c *Controller) fetchCSS(ctx context.Context, id string) (string, error) {
	if c.css == nil {
		return "", errors.New("no stylesheet source configured")
	}
	return c.css.CSS(ctx, id)
}

// removeThemeLocked removes theme stylesheets and marker classes.
func (c *Controller) removeThemeLocked() {
	c.doc.RemoveStylesWithPrefix(theme.StyleIDPrefix)
	c.doc.RemoveBodyClassesWithPrefix(theme.StyleIDPrefix)
}

// Cleanup detaches observers and removes everything the controller
// injected.
func (c *Controller) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupLocked()
}

func (c *Controller) cleanupLocked() {
	for _, stop := range c.unobserve {
		stop()
	}
	c.unobserve = nil
	c.removeThemeLocked()
	c.doc.RemoveStyle(theme.EnhancerStyleID)
	c.state = StateUninitialized
}

// Reload cleans up and runs Setup again.
func (c *Controller) Reload(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debug("reloading enhancer")
	c.cleanupLocked()
	c.setupLocked(ctx)
}

// Config returns a copy of the runtime config.
func (c *Controller) Config() clientconfig.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Clone()
}

// Status reports the lifecycle stage, the current theme, and the
// stylesheets the controller has injected.
func (c *Controller) Status() Status {
	var styles []string
	for _, id := range c.doc.StyleIDs() {
		if id == theme.EnhancerStyleID || strings.HasPrefix(id, theme.StyleIDPrefix) {
			styles = append(styles, id)
		}
	}
	return Status{
		State:        c.State(),
		CurrentTheme: c.Config().CurrentTheme,
		Styles:       styles,
	}
}

// Themes returns the registered themes.
func (c *Controller) Themes() []theme.Theme { return c.catalog.List() }

// UpdateConfig merges partial into the runtime config, saves it, and
// re-applies the theme when the theme or its colors changed. Fields that
// fail validation keep their current value.
func (c *Controller) UpdateConfig(ctx context.Context, partial map[string]any) (clientconfig.Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.cfg.Clone()
	validators := clientconfig.DefaultValidators(func(id string) bool {
		_, err := c.catalog.Get(id)
		return err == nil
	})

	merged := clientconfig.Merge(prev.ToMap(), partial)
	next, rejected := clientconfig.Validate(merged, validators)
	for _, field := range rejected {
		c.logger.Warn("config field failed validation, keeping current value", zap.String("field", field))
	}
	if len(rejected) > 0 {
		// Validate falls back to defaults; restore the current values.
		next = restoreRejected(next, prev, rejected)
	}

	c.cfg = next
	if _, err := c.store.Save(ctx, c.cfg); err != nil {
		c.logger.Error("saving config failed", zap.Error(err))
		return c.cfg.Clone(), err
	}
	c.debug("config updated")

	c.reapplyIfChangedLocked(ctx, prev)
	return c.cfg.Clone(), nil
}

// reapplyIfChangedLocked re-applies the theme when the theme or its colors
// differ from prev.
func (c *Controller) reapplyIfChangedLocked(ctx context.Context, prev clientconfig.Config) {
	next := c.cfg
	if next.CurrentTheme == prev.CurrentTheme &&
		next.EnableCustomization == prev.EnableCustomization &&
		maps.Equal(next.CustomColors, prev.CustomColors) {
		return
	}
	if err := c.applyLocked(ctx, next.CurrentTheme); err != nil {
		c.logger.Error("re-applying theme failed", zap.String("theme", next.CurrentTheme), zap.Error(err))
	}
}

// ResetConfig restores and saves the default runtime config.
func (c *Controller) ResetConfig(ctx context.Context) (clientconfig.Config, error) {
	return c.adopt(ctx, "config reset", func(p ConfigPorter) (clientconfig.Config, error) {
		return p.Reset(ctx)
	})
}

// ImportConfig saves the config carried by an export document and makes it
// the runtime config.
func (c *Controller) ImportConfig(ctx context.Context, data []byte) (clientconfig.Config, error) {
	return c.adopt(ctx, "config imported", func(p ConfigPorter) (clientconfig.Config, error) {
		return p.Import(ctx, data)
	})
}

// SetConfigValue sets one dot-path field of the stored config, e.g.
// "userPreferences.cardSpacing".
func (c *Controller) SetConfigValue(ctx context.Context, path string, value any) (clientconfig.Config, error) {
	return c.adopt(ctx, "config value set", func(p ConfigPorter) (clientconfig.Config, error) {
		return p.SetValue(ctx, path, value)
	})
}

// ExportConfig returns the stored config as an export document.
func (c *Controller) ExportConfig(ctx context.Context) ([]byte, error) {
	if c.porter == nil {
		return nil, ErrNoPorter
	}
	return c.porter.Export(ctx)
}

// ConfigValue returns one dot-path field of the stored config.
func (c *Controller) ConfigValue(ctx context.Context, path string) (any, bool, error) {
	if c.porter == nil {
		return nil, false, ErrNoPorter
	}
	v, ok := c.porter.GetValue(ctx, path)
	return v, ok, nil
}

// ForgetLocalConfig drops the cached config and runs setup again, so the
// page falls back to the server config.
func (c *Controller) ForgetLocalConfig(ctx context.Context) error {
	if c.porter == nil {
		return ErrNoPorter
	}
	if err := c.porter.ClearCache(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.debug("local config cleared")
	c.cleanupLocked()
	c.setupLocked(ctx)
	return nil
}

// adopt runs op against the porter and makes its result the runtime
// config. The page is re-themed when the theme or colors changed.
func (c *Controller) adopt(ctx context.Context, msg string, op func(ConfigPorter) (clientconfig.Config, error)) (clientconfig.Config, error) {
	if c.porter == nil {
		return clientconfig.Config{}, ErrNoPorter
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := op(c.porter)
	if err != nil {
		c.logger.Error("config change failed", zap.String("op", msg), zap.Error(err))
		return c.cfg.Clone(), err
	}
	prev := c.cfg.Clone()
	c.cfg = next
	c.debug(msg)
	c.reapplyIfChangedLocked(ctx, prev)
	return c.cfg.Clone(), nil
}

func restoreRejected(next, prev clientconfig.Config, rejected []string) clientconfig.Config {
	for _, field := range rejected {
		switch field {
		case "currentTheme":
			next.CurrentTheme = prev.CurrentTheme
		case "enableCustomization":
			next.EnableCustomization = prev.EnableCustomization
		case "debugMode":
			next.DebugMode = prev.DebugMode
		case "autoApply":
			next.AutoApply = prev.AutoApply
		case "customColors":
			next.CustomColors = prev.Clone().CustomColors
		case "userPreferences":
			next.UserPreferences = prev.UserPreferences
		case "advanced":
			next.Advanced = prev.Advanced
		case "version":
			next.Version = prev.Version
		}
	}
	return next
}

// Decorate copies the controller's injected stylesheets and marker classes
// onto page and stamps the cards already on it. Previous decorations on
// page are replaced.
func (c *Controller) Decorate(page dom.Document) {
	type style struct{ id, css string }

	c.mu.Lock()
	var styles []style
	for _, id := range c.doc.StyleIDs() {
		if id != theme.EnhancerStyleID && !strings.HasPrefix(id, theme.StyleIDPrefix) {
			continue
		}
		if css, ok := c.doc.StyleText(id); ok {
			styles = append(styles, style{id, css})
		}
	}
	var markers []string
	for _, class := range c.doc.BodyClasses() {
		if strings.HasPrefix(class, theme.StyleIDPrefix) {
			markers = append(markers, class)
		}
	}
	c.mu.Unlock()

	page.RemoveStylesWithPrefix(theme.StyleIDPrefix)
	page.RemoveStyle(theme.EnhancerStyleID)
	page.RemoveBodyClassesWithPrefix(theme.StyleIDPrefix)
	for _, s := range styles {
		page.InjectStyle(s.id, s.css)
	}
	page.AddBodyClass(markers...)
	StampCards(page.QueryAll(cardClasses...))
}

// StampCards sets FadeInAnimation on each card-like element in added and
// on card-like descendants. Stamping an element twice is harmless.
func StampCards(added []*dom.Element) {
	for _, el := range added {
		if el.HasAnyClass(cardClasses...) {
			el.SetStyle("animation", FadeInAnimation)
		}
		for _, card := range el.QueryAll(cardClasses...) {
			card.SetStyle("animation", FadeInAnimation)
		}
	}
}

func (c *Controller) notify(ctx context.Context, eventType, topic string, payload any) {
	c.doc.Dispatch(dom.Event{Type: eventType, Detail: payload})
	if c.bus == nil {
		return
	}
	_ = c.bus.Publish(ctx, event.Event{
		Topic:   topic,
		Source:  "controller",
		Payload: payload,
	})
}

// debug logs only when the runtime config enables debug mode.
func (c *Controller) debug(msg string, fields ...zap.Field) {
	if c.cfg.DebugMode {
		c.logger.Info(msg, fields...)
	}
}
