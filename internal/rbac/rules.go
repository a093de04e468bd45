package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"test:view-shared",
		"attempt:create",
		"attempt:save",
		"attempt:submit",
		"attempt:view-own",
	},
	"teacher": {
		"test:create",
		"test:edit",
		"test:delete",
		"test:view",
		"test:view-shared",
		"test:import",
		"asset:upload",
		"attempt:view-all",
	},
	"admin": {
		"*", // everything
	},
}
