package deriver

import "github.com/claimable/account-registry-backend/interfaces"

// Minimal proxy (EIP-1167) init code split around the embedded implementation
// address. Every account deploys as this proxy, so the derived address binds
// the implementation template: changing the template changes every future
// address.
var (
	proxyCodePrefix = []byte{
		0x3d, 0x60, 0x2d, 0x80, 0x60, 0x0a, 0x3d, 0x39, 0x81, 0xf3,
		0x36, 0x3d, 0x3d, 0x37, 0x3d, 0x3d, 0x3d, 0x36, 0x3d, 0x73,
	}
	proxyCodeSuffix = []byte{
		0x5a, 0xf4, 0x3d, 0x82, 0x80, 0x3e, 0x90, 0x3d, 0x91, 0x60,
		0x2b, 0x57, 0xfd, 0x5b, 0xf3,
	}
)

// ProxyInitCode returns the init code of a minimal proxy pointing at the
// given implementation template.
func ProxyInitCode(implementation interfaces.AccountAddress) []byte {
	code := make([]byte, 0, len(proxyCodePrefix)+20+len(proxyCodeSuffix))
	code = append(code, proxyCodePrefix...)
	code = append(code, implementation[:]...)
	code = append(code, proxyCodeSuffix...)
	return code
}
