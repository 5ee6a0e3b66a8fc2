package mcp

// GetIdentityOutput is the output for the get_identity tool
type GetIdentityOutput struct {
	DoorID    string `json:"door_id" jsonschema:"description=Unique door identifier"`
	CreatedAt string `json:"created_at" jsonschema:"description=ISO8601 provisioning time"`
}

// GetPublicKeyOutput is the output for the get_public_key tool
type GetPublicKeyOutput struct {
	PublicKey string `json:"public_key" jsonschema:"description=PEM encoded RSA public key"`
}

// GetSettingsOutput is the output for the get_settings tool
type GetSettingsOutput struct {
	Settings map[string]string `json:"settings" jsonschema:"description=Setting values keyed by name"`
	Count    int               `json:"count" jsonschema:"description=Number of persisted settings"`
}
