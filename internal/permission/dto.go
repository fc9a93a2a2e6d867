package permission

type GrantResult struct {
	Role    string `json:"role"`
	Code    string `json:"code"`
	Created bool   `json:"created"`
}

type RevokeResult struct {
	Role    string `json:"role"`
	Code    string `json:"code"`
	Removed bool   `json:"removed"`
}

type GrantRequest struct {
	Role string `json:"role"`
	Code string `json:"code"`
}

type MyPermissionsResponse struct {
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

type CatalogResponse struct {
	Permissions []Definition `json:"permissions"`
}

type RoleGrantsResponse struct {
	Role   string   `json:"role"`
	Grants []string `json:"grants"`
}
