package media

import (
	"regexp"
	"strings"

	"github.com/ipfs/go-cid"
)

// Public gateways whose URLs are rewritten onto our own prefix.
var gatewayPrefixes = []string{
	"https://ipfs.io/ipfs",
	"https://gateway.ipfs.io/ipfs",
	"https://gateway.pinata.cloud/ipfs",
	"https://dweb.link/ipfs",
	"ipfs:/",
}

var subdomainGateway = regexp.MustCompile(`^https://([a-zA-Z0-9]+)\.ipfs\.dweb\.link(/.*)?$`)

// RewriteURI points an IPFS style URI at prefix. URIs on other hosts are
// returned unchanged. Subdomain gateway URLs are only rewritten when the
// subdomain is a valid CID.
func RewriteURI(uri, prefix string) string {
	prefix = strings.TrimRight(prefix, "/")

	for _, gateway := range gatewayPrefixes {
		if rest, ok := strings.CutPrefix(uri, gateway); ok {
			return prefix + "/" + strings.TrimLeft(rest, "/")
		}
	}

	if m := subdomainGateway.FindStringSubmatch(uri); m != nil {
		if _, err := cid.Decode(m[1]); err == nil {
			return prefix + "/" + m[1] + m[2]
		}
	}
	return uri
}

// AssetPath is the bucket key of the mirrored copy of an IPFS style URI. It
// returns false for URIs on other hosts.
func AssetPath(uri string) (string, bool) {
	rewritten := RewriteURI(uri, "")
	if rewritten == uri {
		return "", false
	}
	return "nfts/asset" + rewritten, true
}
