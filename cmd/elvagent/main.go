// Command elvagent watches a repository's open pull requests and remediates
// CI failures, missing descriptions and unreviewed changes.
package main

import (
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container
)

func main() {
	execute()
}
