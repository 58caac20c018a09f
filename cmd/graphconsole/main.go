// Command graphconsole queries Microsoft Graph as an application using the
// client-credentials flow, first through the typed client and then with a raw GET.
package main

import "os"

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
