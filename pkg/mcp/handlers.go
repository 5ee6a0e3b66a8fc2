package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/urmzd/doorlock/pkg/db"
)

const redacted = "[redacted]"

// secretKeys are never returned by get_settings.
var secretKeys = map[string]bool{
	db.KeyWiFiPassword:   true,
	db.KeyPresetPassword: true,
	db.KeyPrivateKey:     true,
}

func (s *Server) handleGetIdentity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.identity.Get(ctx)
	if errors.Is(err, db.ErrIdentityNotFound) {
		return mcp.NewToolResultError("device has not been provisioned yet"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read identity: %s", err)), nil
	}

	out := GetIdentityOutput{
		DoorID:    id.DoorID,
		CreatedAt: id.CreatedAt.UTC().Format(time.RFC3339),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleGetPublicKey(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pem, err := s.settings.Get(ctx, db.KeyPublicKey)
	if errors.Is(err, db.ErrSettingNotFound) {
		return mcp.NewToolResultError("no key pair yet; start the lock daemon once to generate it"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read public key: %s", err)), nil
	}

	return mcp.NewToolResultText(formatJSON(GetPublicKeyOutput{PublicKey: pem})), nil
}

func (s *Server) handleGetSettings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all, err := s.settings.All(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list settings: %s", err)), nil
	}

	out := GetSettingsOutput{Settings: make(map[string]string, len(all))}
	for k, v := range all {
		if secretKeys[k] && v != "" {
			v = redacted
		}
		out.Settings[k] = v
	}
	out.Count = len(out.Settings)

	return mcp.NewToolResultText(formatJSON(out)), nil
}

func formatJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal response: %s"}`, err)
	}
	return string(b)
}
