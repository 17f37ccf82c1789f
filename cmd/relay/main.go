// Relay is the patent file wrapper document download relay.
//
// It hands out short-lived local links for patent documents and serves
// them by streaming the document from the USPTO API, keeping the API key
// out of every client's hands and all traffic under one rate limit.
//
// Usage:
//
//	# Start the relay
//	relay run
//
//	# Start with a custom configuration file
//	relay run --config /etc/relay/relay.yaml
//
//	# Issue a link for an application document
//	relay links issue --source self --key 17896175 --doc L7AJVPB2GREENX5
//
//	# Register a sibling document with a running relay
//	relay register --hub http://127.0.0.1:8080 --source fpd --key <id> --doc <id> --url <https url>
//
//	# Show version information
//	relay version
package main

func main() {
	Execute()
}
