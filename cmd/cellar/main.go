// Cellar is an ordering recommendation engine for small retail and bar
// inventories.
//
// It turns weekly inventory counts into a reviewed order sheet:
//   - Usage features (rolling averages, trend, weeks on hand)
//   - Rule-based order recommendations with confidence grades
//   - Budget and item-count constraint enforcement
//   - Keg truck rebalancing for draft vendors
//
// Usage:
//
//	# Run a recommendation pass over CSV inventory data
//	cellar run --catalog items.csv --snapshot counts.csv
//
//	# List stored runs
//	cellar runs list
//
//	# Show a stored run
//	cellar runs show run_abc123
//
//	# Export a run as a CSV order sheet
//	cellar export run_abc123 --output order.csv
//
//	# Start the HTTP API server
//	cellar serve --config /etc/cellar/config.yaml
//
//	# Validate a configuration file
//	cellar validate --config config.yaml
package main

func main() {
	Execute()
}
