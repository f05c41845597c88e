// Command brightdata is the command line client for the Bright Data API.
//
// Usage:
//
//	brightdata [--config path] [-o text|json|markdown|yaml] <command>
//
// Commands:
//
//	scrape url        fetch URLs through the web unlocker zone
//	scrape platform   collect records from a platform dataset
//	search            run search engine queries through the SERP zone
//	crawl             discover pages reachable from a start URL
//	zones             list, ensure and delete zones
//	jobs              trigger, check and fetch dataset collections
//	account           show the account behind the token
//	ping              check connectivity
//	serve             run the operations HTTP server
package main
