package proxy

// Config is the gateway server configuration.
type Config struct {
	// Address to listen on (e.g., ":8080")
	ListenAddr string
}
