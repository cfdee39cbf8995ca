// Package config loads the graphcache client configuration.
//
// A configuration file is YAML. Unknown keys are rejected, missing values
// take the defaults of Default, and the result is validated before use:
//
//	endpoint: /graphql
//	transport:
//	  kind: http
//	  url: https://api.example.com
//	  timeout: 30s
//	  headers:
//	    Authorization: Bearer xyz
//	  breaker:
//	    failure_threshold: 0.8
//	journal:
//	  path: graphcache.db
//	log:
//	  level: info
//	metrics:
//	  namespace: graphcache
package config
