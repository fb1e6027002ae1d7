package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"exam:view-available",
		"taken:create",
		"taken:save",
		"taken:submit",
		"taken:view-own",
		"activity:log",
	},
	"teacher": {
		"exam:*",
		"taken:view-all",
		"grading:view",
		"grading:score",
		"grading:finalize",
		"analytics:view",
		"users:bulk_upsert",
		"users:list",
	},
	"admin": {
		"*", // everything
	},
}
