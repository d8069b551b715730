package update

// Topic prefixes for the update channel's node, channel, and package
// delivery topics.
const (
	Prefix         = "mpypi/"
	ChannelPrefix  = Prefix + "channels/"
	PackagesPrefix = Prefix + "packages/"
	NodesPrefix    = Prefix + "nodes/"
)

func channelTopic(channel string) string { return ChannelPrefix + channel }
func cmdTopic(clientID string) string    { return NodesPrefix + clientID + "/cmd" }
func infoTopic(clientID string) string   { return NodesPrefix + clientID + "/info" }

// PackagesTopic builds the delivery topic for a package identifier (as
// returned by ManifestEntry.PkgID).
func PackagesTopic(pkgID string) string { return PackagesPrefix + pkgID }
