package iproute2

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnmarshalAddresses(t *testing.T) {
	testJson := `
[
   {
      "ifindex":1,
      "ifname":"lo",
      "flags":[
         "LOOPBACK",
         "UP",
         "LOWER_UP"
      ],
      "mtu":65536,
      "operstate":"UNKNOWN",
      "addr_info":[
         {
            "family":"inet",
            "local":"127.0.0.1",
            "prefixlen":8,
            "scope":"host",
            "label":"lo"
         }
      ]
   },
   {
      "ifindex":2,
      "ifname":"eth0",
      "flags":[
         "BROADCAST",
         "MULTICAST",
         "UP",
         "LOWER_UP"
      ],
      "mtu":1500,
      "operstate":"UP",
      "addr_info":[
         {
            "family":"inet",
            "local":"172.20.240.2",
            "prefixlen":20,
            "broadcast":"172.20.255.255",
            "scope":"global",
            "label":"eth0"
         }
      ]
   }
]
`

	addrs, err := UnmarshalAddresses([]byte(testJson))
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(addrs))
	intf := addrs[1]
	assert.Equal(t, "eth0", intf.IfName)
	assert.Equal(t, "UP", intf.Operstate)
	assert.Equal(t, 1, len(intf.AddrInfos))
	addr := intf.AddrInfos[0]
	assert.Equal(t, "inet", addr.Family)
	assert.Equal(t, "global", addr.Scope)
	assert.Equal(t, "172.20.240.2", addr.Local)
}

func TestUnmarshalAddressesInvalid(t *testing.T) {
	_, err := UnmarshalAddresses([]byte("Default Distribution: Ubuntu"))
	assert.NotEqual(t, nil, err)
}
