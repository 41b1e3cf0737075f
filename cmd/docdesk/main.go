// Command docdesk is the command-line client and local web console for the
// document-management backend.
package main

import "github.com/docdesk/docdesk/cmd/docdesk/cmd"

func main() {
	cmd.Execute()
}
