package sefaz

// CachedClients cantidad de clientes HTTP retenidos por c.
func CachedClients(c *SOAPClient) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}
