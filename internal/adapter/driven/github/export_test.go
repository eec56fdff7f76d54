package github

// SetMaxArchiveBytes lowers the log archive cap for tests.
func SetMaxArchiveBytes(c *Client, n int64) { c.maxArchive = n }
