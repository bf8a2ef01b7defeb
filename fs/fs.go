package appfs

import "embed"

// FS holds the database migrations, email templates and static assets shipped with the binaries.
//
//go:embed migrations templates assets
var FS embed.FS
