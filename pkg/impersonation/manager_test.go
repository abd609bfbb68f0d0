package impersonation

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestManager_Impersonate(t *testing.T) {
	m := NewManager(false)
	addr := common.HexToAddress("0x1234567890123456789012345678901234567890")

	assert.False(t, m.IsImpersonated(addr))

	assert.True(t, m.Impersonate(addr))
	assert.False(t, m.Impersonate(addr))
	assert.True(t, m.IsImpersonated(addr))
	assert.Equal(t, []common.Address{addr}, m.Accounts())

	m.StopImpersonating(addr)
	assert.False(t, m.IsImpersonated(addr))
	assert.Empty(t, m.Accounts())
}

func TestManager_AutoImpersonate(t *testing.T) {
	m := NewManager(true)
	addr := common.HexToAddress("0xabcdef0123456789abcdef0123456789abcdef01")

	assert.True(t, m.IsAutoImpersonate())
	assert.True(t, m.IsImpersonated(addr))

	m.SetAutoImpersonate(false)
	assert.False(t, m.IsImpersonated(addr))
}

func TestManager_Clear(t *testing.T) {
	m := NewManager(true)
	addr := common.HexToAddress("0x01")
	m.Impersonate(addr)

	m.Clear()

	assert.False(t, m.IsAutoImpersonate())
	assert.False(t, m.IsImpersonated(addr))
}
