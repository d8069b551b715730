package update

import (
	"context"
	"sync"
	"testing"
	"time"

	mqtt "github.com/fleetcore/otamqtt"
	"github.com/fleetcore/otamqtt/archive/wheel"
	"github.com/fleetcore/otamqtt/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePublisher records every published message.
type fakePublisher struct {
	mu        sync.Mutex
	published []*packet.Message
}

func (p *fakePublisher) Publish(_ context.Context, msg *packet.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, msg)
	return nil
}

// fakeSubscriber records subscribe/unsubscribe calls without ever actually
// dispatching through a real Dispatcher; tests feed the Channel directly via
// HandleMessage.
type fakeSubscriber struct {
	mu           sync.Mutex
	subscribed   []string
	unsubscribed []string
}

func (s *fakeSubscriber) Subscribe(_ context.Context, topic string, _ mqtt.Consumer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = append(s.subscribed, topic)
	return nil
}

func (s *fakeSubscriber) Unsubscribe(_ context.Context, topic string, _ mqtt.Consumer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribed = append(s.unsubscribed, topic)
	return nil
}

func (s *fakeSubscriber) subscribedTopics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.subscribed))
	copy(out, s.subscribed)
	return out
}

// fakeInventory is an in-memory Inventory double.
type fakeInventory struct {
	mu       sync.Mutex
	wheels   map[string]string // name -> version
	packages map[string]*wheel.Package
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{wheels: make(map[string]string), packages: make(map[string]*wheel.Package)}
}

func (i *fakeInventory) InstalledWheel(name string) (string, string, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	v, ok := i.wheels[name]
	return v, "", ok
}

func (i *fakeInventory) InstalledWheels() map[string]string {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make(map[string]string, len(i.wheels))
	for k, v := range i.wheels {
		out[k] = v
	}
	return out
}

func (i *fakeInventory) InstalledPackage(name string) (*wheel.Package, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	pkg, ok := i.packages[name]
	return pkg, ok
}

// fakeInstaller is an in-memory Installer double.
type fakeInstaller struct {
	mu         sync.Mutex
	installed  []string // names of wheels passed to InstallWheel
	upgraded   []string
	srcWritten map[string][]byte
	srcExists  map[string][]byte
}

func newFakeInstaller() *fakeInstaller {
	return &fakeInstaller{srcWritten: make(map[string][]byte), srcExists: make(map[string][]byte)}
}

func (f *fakeInstaller) InstallWheel(r *wheel.Reader) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installed = append(f.installed, r.Package.Name)
	return nil
}

func (f *fakeInstaller) UpgradeWheel(existing *wheel.Package, r *wheel.Reader) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upgraded = append(f.upgraded, r.Package.Name)
	return nil
}

func (f *fakeInstaller) WriteSrc(path string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.srcWritten[path] = data
	return nil
}

func (f *fakeInstaller) ReadSrc(path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.srcExists[path]
	return data, ok
}

type fakePlatform struct{}

func (fakePlatform) Sysname() string { return "testos" }
func (fakePlatform) Machine() string { return "testarch" }
func (fakePlatform) Version() string { return "1.0" }

type fakeRebooter struct {
	mu    sync.Mutex
	count int
}

func (r *fakeRebooter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
}

func (r *fakeRebooter) resetCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func newTestChannel(autoUpdate bool) (*Channel, *fakePublisher, *fakeSubscriber, *fakeInventory, *fakeInstaller, *fakeRebooter) {
	pub := &fakePublisher{}
	sub := &fakeSubscriber{}
	inv := newFakeInventory()
	inst := newFakeInstaller()
	reb := &fakeRebooter{}
	ch := New("firmware", "dev-1", autoUpdate, pub, sub, inv, inst, fakePlatform{}, reb)
	return ch, pub, sub, inv, inst, reb
}

func waitForState(t *testing.T, ch *Channel, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ch.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state did not reach %s within %s, currently %s", want, timeout, ch.State())
}

func TestChannelRegisterPublishesInfoAndSubscribes(t *testing.T) {
	ch, pub, sub, inv, _, _ := newTestChannel(true)
	inv.wheels["demo"] = "1.0"

	require.NoError(t, ch.Register(context.Background()))

	require.Len(t, pub.published, 1)
	assert.Equal(t, "mpypi/nodes/dev-1/info", pub.published[0].Topic)
	assert.True(t, pub.published[0].Retain)

	topics := sub.subscribedTopics()
	assert.Contains(t, topics, "mpypi/nodes/dev-1/cmd")
	assert.Contains(t, topics, "mpypi/channels/firmware")
}

func TestChannelManifestWithNoChangesStaysIdle(t *testing.T) {
	ch, _, _, inv, _, _ := newTestChannel(true)
	inv.wheels["demo"] = "1.0"

	manifest := []byte(`[{"type":"wheel","name":"demo","version":"1.0","pkg_sha256":"x"}]`)
	ch.HandleMessage(&packet.Message{Topic: "mpypi/channels/firmware", PayloadRaw: manifest})

	waitForState(t, ch, Idle, time.Second)
}

func TestChannelManifestWithChangeAndAutoUpdateSubscribesToPackage(t *testing.T) {
	ch, _, sub, inv, _, _ := newTestChannel(true)
	inv.wheels["demo"] = "1.0"

	manifest := []byte(`[{"type":"wheel","name":"demo","version":"2.0","pkg_sha256":"newsha"}]`)
	ch.HandleMessage(&packet.Message{Topic: "mpypi/channels/firmware", PayloadRaw: manifest})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && !contains(sub.subscribedTopics(), "mpypi/packages/wheel/newsha") {
		time.Sleep(time.Millisecond)
	}
	assert.Contains(t, sub.subscribedTopics(), "mpypi/packages/wheel/newsha")
}

func TestChannelManifestWithChangeAndNoAutoUpdateStaysIdleAwaitingCmd(t *testing.T) {
	ch, _, sub, inv, _, _ := newTestChannel(false)
	inv.wheels["demo"] = "1.0"

	manifest := []byte(`[{"type":"wheel","name":"demo","version":"2.0","pkg_sha256":"newsha"}]`)
	ch.HandleMessage(&packet.Message{Topic: "mpypi/channels/firmware", PayloadRaw: manifest})

	waitForState(t, ch, Idle, time.Second)
	assert.NotContains(t, sub.subscribedTopics(), "mpypi/packages/wheel/newsha")
}

func TestChannelManifestFromCmdBypassesAutoUpdateGate(t *testing.T) {
	ch, _, sub, inv, _, _ := newTestChannel(false)
	inv.wheels["demo"] = "1.0"

	manifest := []byte(`[{"type":"wheel","name":"demo","version":"2.0","pkg_sha256":"newsha"}]`)
	ch.HandleMessage(&packet.Message{Topic: "mpypi/nodes/dev-1/cmd", PayloadRaw: manifest})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if contains(sub.subscribedTopics(), "mpypi/packages/wheel/newsha") {
			break
		}
		time.Sleep(time.Millisecond)
	}
	assert.Contains(t, sub.subscribedTopics(), "mpypi/packages/wheel/newsha")
}

func TestChannelManifestSrcUnchangedSkipped(t *testing.T) {
	ch, _, _, _, inst, _ := newTestChannel(true)
	content := []byte("same content")
	inst.srcExists["/app/config.ini"] = content

	manifest := []byte(`[{"type":"src","path":"/app/config.ini","pkg_sha256":"` + wheel.Sha256Hex(content) + `"}]`)
	ch.HandleMessage(&packet.Message{Topic: "mpypi/channels/firmware", PayloadRaw: manifest})

	waitForState(t, ch, Idle, time.Second)
}

func TestChannelHandlePackageSrcWritesOnHashMatch(t *testing.T) {
	ch, _, sub, _, inst, reb := newTestChannel(true)

	payload := []byte("new config contents")
	sha := wheel.Sha256Hex(payload)
	manifest := []byte(`[{"type":"src","path":"/app/config.ini","pkg_sha256":"` + sha + `"}]`)
	ch.HandleMessage(&packet.Message{Topic: "mpypi/channels/firmware", PayloadRaw: manifest})

	pkgTopic := "mpypi/packages/src//app/config.ini/" + sha
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && !contains(sub.subscribedTopics(), pkgTopic) {
		time.Sleep(time.Millisecond)
	}
	require.Contains(t, sub.subscribedTopics(), pkgTopic)

	ch.HandleMessage(&packet.Message{Topic: pkgTopic, PayloadRaw: payload})

	waitForState(t, ch, NeedsReboot, 5*time.Second)
	assert.Equal(t, payload, inst.srcWritten["/app/config.ini"])

	deadline = time.Now().Add(rebootDelay + 2*time.Second)
	for time.Now().Before(deadline) && reb.resetCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 1, reb.resetCount())
}

func TestChannelHandlePackageSrcHashMismatchDiscardsAndStillSignalsDone(t *testing.T) {
	ch, _, sub, _, inst, _ := newTestChannel(true)

	payload := []byte("expected contents")
	sha := wheel.Sha256Hex(payload)
	manifest := []byte(`[{"type":"src","path":"/app/config.ini","pkg_sha256":"` + sha + `"}]`)
	ch.HandleMessage(&packet.Message{Topic: "mpypi/channels/firmware", PayloadRaw: manifest})

	pkgTopic := "mpypi/packages/src//app/config.ini/" + sha
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && !contains(sub.subscribedTopics(), pkgTopic) {
		time.Sleep(time.Millisecond)
	}

	tampered := []byte("tampered contents")
	ch.HandleMessage(&packet.Message{Topic: pkgTopic, PayloadRaw: tampered})

	waitForState(t, ch, Idle, time.Second)
	assert.Empty(t, inst.srcWritten)
}

func TestChannelHandlePackageDuplicateDeliveryIgnored(t *testing.T) {
	ch, _, sub, _, inst, _ := newTestChannel(true)

	payload := []byte("config body")
	sha := wheel.Sha256Hex(payload)
	manifest := []byte(`[{"type":"src","path":"/app/config.ini","pkg_sha256":"` + sha + `"}]`)
	ch.HandleMessage(&packet.Message{Topic: "mpypi/channels/firmware", PayloadRaw: manifest})

	pkgTopic := "mpypi/packages/src//app/config.ini/" + sha
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && !contains(sub.subscribedTopics(), pkgTopic) {
		time.Sleep(time.Millisecond)
	}

	ch.HandleMessage(&packet.Message{Topic: pkgTopic, PayloadRaw: payload})
	waitForState(t, ch, NeedsReboot, rebootDelay+2*time.Second)

	// A second, stale delivery of the same package arrives after the wait
	// loop is no longer subscribed; it must be a silent no-op, not a panic
	// or a second write.
	ch.HandleMessage(&packet.Message{Topic: pkgTopic, PayloadRaw: payload})

	assert.Equal(t, payload, inst.srcWritten["/app/config.ini"])
}

// TestChannelReprocessingIdenticalManifestIsIdempotent covers the
// idempotency property: handling the same unchanged manifest twice must not
// trigger Fetching the second time either.
func TestChannelReprocessingIdenticalManifestIsIdempotent(t *testing.T) {
	ch, _, sub, inv, _, _ := newTestChannel(true)
	inv.wheels["demo"] = "1.0"

	manifest := []byte(`[{"type":"wheel","name":"demo","version":"1.0","pkg_sha256":"x"}]`)
	ch.HandleMessage(&packet.Message{Topic: "mpypi/channels/firmware", PayloadRaw: manifest})
	waitForState(t, ch, Idle, time.Second)

	ch.HandleMessage(&packet.Message{Topic: "mpypi/channels/firmware", PayloadRaw: manifest})
	waitForState(t, ch, Idle, time.Second)

	for _, topic := range sub.subscribedTopics() {
		assert.NotContains(t, topic, "mpypi/packages/")
	}
}

// TestChannelWaitingPkgsMatchesExactlyChangedEntries covers the
// waiting_pkgs set-equality property: after diffing a manifest with one
// changed wheel and one unchanged wheel, the channel subscribes to exactly
// the changed package's topic and no other.
func TestChannelWaitingPkgsMatchesExactlyChangedEntries(t *testing.T) {
	ch, _, sub, inv, _, _ := newTestChannel(true)
	inv.wheels["unchanged"] = "1.0"
	inv.wheels["changed"] = "1.0"

	manifest := []byte(`[
		{"type":"wheel","name":"unchanged","version":"1.0","pkg_sha256":"a"},
		{"type":"wheel","name":"changed","version":"2.0","pkg_sha256":"b"}
	]`)
	ch.HandleMessage(&packet.Message{Topic: "mpypi/channels/firmware", PayloadRaw: manifest})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && !contains(sub.subscribedTopics(), "mpypi/packages/wheel/b") {
		time.Sleep(time.Millisecond)
	}

	topics := sub.subscribedTopics()
	assert.Contains(t, topics, "mpypi/packages/wheel/b")
	assert.NotContains(t, topics, "mpypi/packages/wheel/a")
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
