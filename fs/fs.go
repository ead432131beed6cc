package appfs

import "embed"

// FS holds the SQL migrations, the email templates and static data files.
//
//go:embed migrations/*.sql templates/email/* data/*
var FS embed.FS
