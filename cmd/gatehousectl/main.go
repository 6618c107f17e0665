// gatehousectl is the command-line client for a Gatehouse server. It keeps
// the access token in ~/.gatehouse/session.json between invocations.
package main

import "github.com/nerrad567/gatehouse/cmd/gatehousectl/cmd"

func main() {
	cmd.Execute()
}
