// Package cli implements the userdb command tree.
//
// Commands
//
//	status [user...]              where each user's database lives
//	query <user> <sql> [args...]  run a read-only statement and print rows
//	exec <user> <sql> [args...]   run a modifying statement
//	externalize <user> <locator>  move a managed database into a document
//	internalize <user>            move an external document back to managed
//	unlink <user>                 forget a user and delete local files
//	watch <user...>               refresh caches when documents change
//
// Persistent flags mirror the config file keys; see package config.
package cli
