package bot

import "strings"

// attackTools are user agent substrings of offensive tooling. Any match is
// treated as conclusive on the user agent axis.
var attackTools = []string{
	"sqlmap",
	"nikto",
	"nmap",
	"masscan",
	"nessus",
	"acunetix",
	"dirbuster",
	"gobuster",
	"wfuzz",
	"hydra",
	"metasploit",
	"havij",
	"zgrab",
}

// genericClients are programmatic HTTP clients. Legitimate automation uses
// them too, so they score lower than attack tools.
var genericClients = []string{
	"curl",
	"wget",
	"python-requests",
	"python-urllib",
	"go-http-client",
	"libwww",
	"okhttp",
	"scrapy",
	"httpclient",
	"java/",
	"aiohttp",
}

// probePaths are endpoints almost exclusively requested by scanners.
var probePaths = []string{
	"/wp-admin",
	"/wp-login.php",
	"/xmlrpc.php",
	"/.env",
	"/.git",
	"/.aws",
	"/phpmyadmin",
	"/cgi-bin",
	"/etc/passwd",
	"/server-status",
	"/actuator",
	"/vendor/phpunit",
	"/config.php",
	"/backup",
	"/adminer",
}

var probeExtensions = []string{".php", ".asp", ".aspx", ".jsp", ".cgi"}

var loginPaths = []string{
	"/login",
	"/signin",
	"/sign-in",
	"/auth",
	"/session",
	"/wp-login",
	"/oauth/token",
}

var adminPaths = []string{
	"/admin",
	"/wp-admin",
	"/administrator",
	"/manage",
}

func containsAny(s string, needles []string) (string, bool) {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return n, true
		}
	}
	return "", false
}

func isLoginPath(path string) bool {
	p := strings.ToLower(path)
	_, ok := containsAny(p, loginPaths)
	return ok
}

func isAdminPath(path string) bool {
	p := strings.ToLower(path)
	_, ok := containsAny(p, adminPaths)
	return ok
}
