package metrics

// Config carries the constant labels attached to every collector.
type Config struct {
	ServiceName string
	Environment string
}
