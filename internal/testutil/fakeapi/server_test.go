package fakeapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-apitest/pkg/auth"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/expect"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/jsonrpc"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/preprocessing"
)

func adminContext(t *testing.T, c *jsonrpc.Client) context.Context {
	t.Helper()
	s, err := c.Login(context.Background(), AdminUsername, AdminPassword)
	require.NoError(t, err)
	return auth.ContextWithSession(context.Background(), s)
}

func TestServer_RequiresSession(t *testing.T) {
	srv := New(t)
	c, err := jsonrpc.New(srv.URL)
	require.NoError(t, err)

	resp, err := c.Call(context.Background(), "hostgroup.create", map[string]any{"name": "g"})
	require.NoError(t, err)
	require.True(t, resp.Failed())
	assert.Equal(t, "Not authorized.", resp.ErrorData())
}

func TestServer_LoginRejected(t *testing.T) {
	srv := New(t)
	c, err := jsonrpc.New(srv.URL)
	require.NoError(t, err)

	_, err = c.Login(context.Background(), AdminUsername, "wrong")
	require.Error(t, err)
}

func TestServer_UnknownMethod(t *testing.T) {
	srv := New(t)
	c, err := jsonrpc.New(srv.URL)
	require.NoError(t, err)

	resp, err := c.Call(adminContext(t, c), "sysmap.create", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, -32601, resp.Error.Code)
}

func TestServer_RejectedCallWritesNothing(t *testing.T) {
	srv := New(t)
	c, err := jsonrpc.New(srv.URL)
	require.NoError(t, err)
	ctx := adminContext(t, c)

	// The second object fails after the first one was inserted.
	resp, err := c.Call(ctx, "hostgroup.create", []any{
		map[string]any{"name": "a"},
		map[string]any{"name": ""},
	})
	require.NoError(t, err)
	require.NoError(t, expect.Error(`Invalid parameter "/2/name": cannot be empty.`).Verify(resp))

	var n int
	require.NoError(t, srv.DB().QueryRow(`SELECT COUNT(*) FROM hstgrp`).Scan(&n))
	assert.Zero(t, n)
}

func TestServer_ItemPreprocessingStoredOrder(t *testing.T) {
	srv := New(t)
	c, err := jsonrpc.New(srv.URL)
	require.NoError(t, err)
	ctx := adminContext(t, c)

	resp, err := c.Call(ctx, "hostgroup.create", map[string]any{"name": "g"})
	require.NoError(t, err)
	groupIDs, err := resp.IDs("groupids")
	require.NoError(t, err)
	resp, err = c.Call(ctx, "host.create", map[string]any{
		"host": "h", "groups": []any{map[string]any{"groupid": groupIDs[0]}},
	})
	require.NoError(t, err)
	hostIDs, err := resp.IDs("hostids")
	require.NoError(t, err)

	resp, err = c.Call(ctx, "item.create", map[string]any{
		"hostid": hostIDs[0], "name": "i", "key_": "i", "type": 2, "value_type": 3,
		"preprocessing": []preprocessing.Step{
			preprocessing.Trim(" "),
			preprocessing.NotSupported(preprocessing.MatchAny, ""),
			preprocessing.NotSupported(preprocessing.MatchRegex, "abc"),
		},
	})
	require.NoError(t, err)
	itemIDs, err := resp.IDs("itemids")
	require.NoError(t, err)

	resp, err = c.Call(ctx, "item.get", map[string]any{"itemids": itemIDs})
	require.NoError(t, err)
	var items []struct {
		Preprocessing []preprocessing.Step `json:"preprocessing"`
	}
	require.NoError(t, resp.Decode(&items))
	require.Len(t, items, 1)
	assert.Equal(t, []preprocessing.Step{
		preprocessing.NotSupported(preprocessing.MatchRegex, "abc"),
		preprocessing.NotSupported(preprocessing.MatchAny, ""),
		preprocessing.Trim(" "),
	}, items[0].Preprocessing)
}

func TestServer_UserSelfDeletion(t *testing.T) {
	srv := New(t)
	c, err := jsonrpc.New(srv.URL)
	require.NoError(t, err)
	ctx := adminContext(t, c)

	resp, err := c.Call(ctx, "user.delete", []string{"1"})
	require.NoError(t, err)
	assert.NoError(t, expect.Error("User is not allowed to delete himself.").Verify(resp))
}
