package rate

func loginKey(identifier string) string { return "tl:" + identifier }

func loginIPKey(ip string) string { return "tli:" + ip }

func refreshKey(sessionID string) string { return "tr:" + sessionID }
