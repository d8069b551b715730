package update

import "encoding/json"

// NodeInfo is the retained payload published to mpypi/nodes/<client_id>/info
// on registration, describing the device's platform and currently installed
// packages.
type NodeInfo struct {
	Platform PlatformSummary   `json:"platform"`
	Packages map[string]string `json:"packages"`
}

// PlatformSummary is the JSON shape of a PlatformInfo snapshot.
type PlatformSummary struct {
	Sysname string `json:"sysname"`
	Machine string `json:"machine"`
	Version string `json:"version"`
}

func buildNodeInfo(p PlatformInfo, inv Inventory) NodeInfo {
	return NodeInfo{
		Platform: PlatformSummary{
			Sysname: p.Sysname(),
			Machine: p.Machine(),
			Version: p.Version(),
		},
		Packages: inv.InstalledWheels(),
	}
}

func marshalNodeInfo(info NodeInfo) ([]byte, error) {
	return json.Marshal(info)
}
