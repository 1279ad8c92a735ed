package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandString(t *testing.T) {
	cases := []struct {
		cmd  Command
		name string
	}{
		{CmdGet, "GET"},
		{CmdSet, "SET"},
		{CmdMigrationBegin, "MIGRATION_BEGIN"},
		{CmdMigrationAbort, "MIGRATION_ABORT"},
		{CmdReplicaPing, "REPLICA_PING"},
		{Command(0xAB), "UNKNOWN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.name, tc.cmd.String())
		})
	}
}

func TestCommandValid(t *testing.T) {
	assert.True(t, CmdGet.Valid())
	assert.True(t, CmdMigrationBegin.Valid())
	assert.True(t, CmdReplicaAck.Valid())
	assert.False(t, Command(0x00).Valid())
}

func TestTimeoutDefaultAndOverride(t *testing.T) {
	require.Equal(t, int64(defaultTimeoutMs), Timeout())

	SetTimeout(1234)
	assert.Equal(t, int64(1234), Timeout())

	SetTimeout(defaultTimeoutMs)
}

func TestMagicMaskIgnoresVersion(t *testing.T) {
	v1 := MagicPrefix | uint32(Version)
	v2 := MagicPrefix | 0x02
	assert.Equal(t, v1&MagicMask, v2&MagicMask)
}
