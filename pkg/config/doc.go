// Package config loads the runtime configuration of a gantry process.
//
// Configuration is read from a YAML file, overlaid with environment variables
// and validated with struct tags:
//
//	appID: checkout
//	namespace: prod
//	mode: kubernetes
//	strictSandbox: true
//	componentsPath: ./components
//	secretStores:
//	  - name: kubernetes
//	    type: file
//	    path: /var/run/secrets/gantry.yaml
//	  - name: vault
//	    type: vault
//	    address: https://vault:8200
//	    mountPath: kv
//	policy:
//	  enabled: true
//	  paths: [./policies]
//	store:
//	  path: gantry.db
//	maxConcurrency: 8
//
// Environment variables take precedence over the file:
//
//	APP_ID                 application id
//	NAMESPACE              namespace, "default" when unset everywhere
//	POD_NAME               pod name
//	GANTRY_STRICT_SANDBOX  strict sandbox for WASM components (true/false)
//	GANTRY_MODE            kubernetes or standalone
package config
