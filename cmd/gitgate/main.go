// gitgate — branch access control for git pushes.
// Installed as an update or pre-receive hook; every ref update is checked
// against the users policy and rejected unless a role permits it.
package main

import "github.com/ppiankov/gitgate/internal/cli"

func main() {
	cli.Execute()
}
