// Warden is a safety-gating decision core for offline expert appliances.
//
// It runs distilled domain knowledge behind a three-stage pipeline
// (worker, auditor, resolver), governed by a declarative policy
// document, with scoped override keys and a tamper-evident audit log.
//
// Usage:
//
//	# Start the interactive appliance
//	warden run
//
//	# Start with a custom configuration file
//	warden run --config /etc/warden/config.yaml
//
//	# Inspect the device
//	warden status
//
//	# Work with the audit chain
//	warden audit verify
//	warden audit query --type resolver_decision --limit 20
//	warden audit export --format csv --output audit.csv
//
//	# Manage override keys
//	warden keys generate --scopes safety_override,mode_control
//	warden keys list
package main

func main() {
	Execute()
}
