package update

import (
	"bytes"
	"context"
	"sync"
	"time"

	mqtt "github.com/fleetcore/otamqtt"
	"github.com/fleetcore/otamqtt/archive/wheel"
	"github.com/fleetcore/otamqtt/archive/zipfile"
	"github.com/fleetcore/otamqtt/packet"
	"github.com/rs/zerolog"
)

// rebootDelay is how long the channel waits after a successful install
// before triggering a reset, giving in-flight acks and logs time to flush.
const rebootDelay = 3 * time.Second

// publisher is the slice of mqtt.Client the channel needs.
type publisher interface {
	Publish(ctx context.Context, msg *packet.Message) error
}

// subscriber is the slice of mqtt.Dispatcher the channel needs.
type subscriber interface {
	Subscribe(ctx context.Context, topic string, c mqtt.Consumer) error
	Unsubscribe(ctx context.Context, topic string, c mqtt.Consumer) error
}

// Channel is the update channel state machine: it diffs an announced
// manifest against local inventory, subscribes to exactly the missing
// artifacts, and installs them as they arrive, talking to the filesystem
// only through the Installer/Inventory/PlatformInfo/Rebooter boundary
// interfaces.
type Channel struct {
	channel    string
	clientID   string
	autoUpdate bool

	pub publisher
	sub subscriber

	inventory Inventory
	installer Installer
	platform  PlatformInfo
	rebooter  Rebooter

	log     zerolog.Logger
	metrics *mqtt.Metrics

	state State

	mu            sync.Mutex
	waitingPkgs   map[string]struct{}
	pkgsInstalled bool
	updateDone    *latch
}

// Config bundles the Channel's construction-time dependencies, for callers
// (cmd/device) that prefer one struct literal over a long positional
// argument list.
type Config struct {
	Channel    string
	ClientID   string
	AutoUpdate bool

	Publisher  publisher
	Dispatcher subscriber

	Inventory Inventory
	Installer Installer
	Platform  PlatformInfo
	Rebooter  Rebooter
}

// New constructs a Channel. pub/sub are typically *mqtt.Client and its
// Dispatcher.
func New(channel, clientID string, autoUpdate bool, pub publisher, sub subscriber,
	inv Inventory, inst Installer, platform PlatformInfo, rebooter Rebooter) *Channel {
	return &Channel{
		channel:     channel,
		clientID:    clientID,
		autoUpdate:  autoUpdate,
		pub:         pub,
		sub:         sub,
		inventory:   inv,
		installer:   inst,
		platform:    platform,
		rebooter:    rebooter,
		log:         zerolog.Nop(),
		waitingPkgs: make(map[string]struct{}),
		updateDone:  newLatch(),
	}
}

// NewFromConfig is New with its dependencies grouped into a Config.
func NewFromConfig(cfg Config) *Channel {
	return New(cfg.Channel, cfg.ClientID, cfg.AutoUpdate, cfg.Publisher, cfg.Dispatcher,
		cfg.Inventory, cfg.Installer, cfg.Platform, cfg.Rebooter)
}

// WithLogger attaches a logger, returning c for chaining.
func (c *Channel) WithLogger(log zerolog.Logger) *Channel {
	c.log = log
	return c
}

// WithMetrics attaches a Metrics instance, returning c for chaining.
func (c *Channel) WithMetrics(m *mqtt.Metrics) *Channel {
	c.metrics = m
	return c
}

// State returns the channel's current state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.UpdateState.Set(float64(s))
	}
}

// Register publishes this device's NodeInfo (retained) and subscribes to
// its cmd and channel topics.
func (c *Channel) Register(ctx context.Context) error {
	info := buildNodeInfo(c.platform, c.inventory)
	raw, err := marshalNodeInfo(info)
	if err != nil {
		return err
	}

	c.log.Info().Str("channel", c.channel).Msg("registering with update channel")
	if err := c.pub.Publish(ctx, packet.NewMessage(infoTopic(c.clientID), raw, 1, true)); err != nil {
		return err
	}
	if err := c.sub.Subscribe(ctx, cmdTopic(c.clientID), c); err != nil {
		return err
	}
	return c.sub.Subscribe(ctx, channelTopic(c.channel), c)
}

// HandleMessage implements mqtt.Consumer: it routes an inbound PUBLISH by
// topic to the manifest or package-delivery handler. Manifest handling runs
// in its own goroutine: Fetching waits for further package-delivery
// messages to arrive through this same dispatcher, so it must never block
// the dispatch call that invoked it.
func (c *Channel) HandleMessage(msg *packet.Message) {
	ctx := context.Background()
	switch msg.Topic {
	case channelTopic(c.channel):
		go c.handleManifest(ctx, msg.PayloadRaw, false)
	case cmdTopic(c.clientID):
		go c.handleManifest(ctx, msg.PayloadRaw, true)
	default:
		c.handlePackage(ctx, msg.Topic, msg.PayloadRaw)
	}
}

func (c *Channel) handleManifest(ctx context.Context, raw []byte, fromCmd bool) {
	c.log.Info().Str("channel", c.channel).Msg("received manifest")
	c.setState(Diffing)

	entries, err := ParseManifest(raw)
	if err != nil {
		c.log.Warn().Err(err).Msg("malformed manifest, ignoring")
		return
	}

	c.mu.Lock()
	c.waitingPkgs = make(map[string]struct{})
	c.updateDone.Clear()
	c.mu.Unlock()

	for _, entry := range entries {
		switch entry.Type {
		case EntryWheel:
			version, _, ok := c.inventory.InstalledWheel(entry.Name)
			if ok && version == entry.Version {
				continue // unchanged
			}
			c.log.Info().Str("name", entry.Name).Str("to", entry.Version).Msg("update available")
			c.addWaiting(entry.PkgID())
		case EntrySrc:
			data, ok := c.installer.ReadSrc(entry.Path)
			if ok && wheel.Sha256Hex(data) == entry.PkgSHA256 {
				continue // unchanged
			}
			c.addWaiting(entry.PkgID())
		default:
			c.log.Warn().Str("type", string(entry.Type)).Msg("unknown manifest entry type, skipping")
		}
	}

	if !c.updateAvailable() {
		c.updateDone.Set()
		c.setState(Idle)
		return
	}

	if !fromCmd && !c.autoUpdate {
		c.log.Info().Msg("update available, awaiting explicit cmd")
		c.setState(Idle)
		return
	}

	c.setState(Fetching)
	for pkgID := range c.snapshotWaiting() {
		if err := c.sub.Subscribe(ctx, PackagesTopic(pkgID), c); err != nil {
			c.log.Warn().Err(err).Str("pkg_id", pkgID).Msg("subscribing to package delivery")
		}
	}

	if err := c.updateDone.Wait(ctx); err != nil {
		return
	}

	if c.pkgsInstalledFlag() {
		c.setState(NeedsReboot)
		c.log.Info().Dur("delay", rebootDelay).Msg("update applied, rebooting")
		time.Sleep(rebootDelay)
		c.rebooter.Reset()
	} else {
		c.setState(Idle)
	}
}

func (c *Channel) handlePackage(ctx context.Context, topic string, payload []byte) {
	pkgID := topic[len(PackagesPrefix):]

	c.mu.Lock()
	if _, waiting := c.waitingPkgs[pkgID]; !waiting {
		c.mu.Unlock()
		return // duplicate delivery
	}
	delete(c.waitingPkgs, pkgID)
	c.mu.Unlock()

	_ = c.sub.Unsubscribe(ctx, topic, c)

	typ, path, sha, err := ParsePkgID(pkgID)
	if err != nil {
		c.log.Warn().Err(err).Str("pkg_id", pkgID).Msg("malformed package id")
		c.maybeSignalDone()
		return
	}

	var installErr error
	switch typ {
	case EntrySrc:
		if wheel.Sha256Hex(payload) != sha {
			installErr = &BadSrcPayload{Path: path, Expected: sha}
		} else {
			installErr = c.installer.WriteSrc(path, payload)
		}
	case EntryWheel:
		installErr = c.installWheelPayload(payload)
	}

	if installErr != nil {
		c.log.Warn().Err(installErr).Str("pkg_id", pkgID).Msg("artifact install failed, discarding")
		if c.metrics != nil {
			c.metrics.UpdatesFailed.Inc()
		}
	} else {
		c.mu.Lock()
		c.pkgsInstalled = true
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.UpdatesApplied.Inc()
		}
	}

	c.maybeSignalDone()
}

func (c *Channel) installWheelPayload(payload []byte) error {
	zr, err := zipfile.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return err
	}
	whr, err := wheel.Open(zr)
	if err != nil {
		return err
	}

	existing, ok := c.inventory.InstalledPackage(whr.Package.Name)
	if !ok {
		return c.installer.InstallWheel(whr)
	}
	return c.installer.UpgradeWheel(existing, whr)
}

func (c *Channel) addWaiting(pkgID string) {
	c.mu.Lock()
	c.waitingPkgs[pkgID] = struct{}{}
	c.mu.Unlock()
}

func (c *Channel) updateAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waitingPkgs) > 0
}

func (c *Channel) snapshotWaiting() map[string]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]struct{}, len(c.waitingPkgs))
	for k := range c.waitingPkgs {
		out[k] = struct{}{}
	}
	return out
}

func (c *Channel) pkgsInstalledFlag() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pkgsInstalled
}

func (c *Channel) maybeSignalDone() {
	c.mu.Lock()
	empty := len(c.waitingPkgs) == 0
	c.mu.Unlock()
	if empty {
		c.updateDone.Set()
	}
}

// BadSrcPayload reports that a delivered src artifact's hash did not match
// the manifest's pkg_sha256. The consumer validates against the manifest
// hash regardless of what the publisher itself hashed.
type BadSrcPayload struct {
	Path, Expected string
}

func (e *BadSrcPayload) Error() string {
	return "update: src payload for " + e.Path + " does not match manifest hash " + e.Expected
}
