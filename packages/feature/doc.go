// Package feature loads YAML feature files and discovers them on disk.
//
// A feature file looks like:
//
//	name: Login works
//	tags: ["@smoke", "@auth"]
//	steps:
//	  - name: token
//	    once: auth-token
//	    http:
//	      method: POST
//	      url: "{{baseUrl}}/login"
//	      status: 200
//	      capture:
//	        token: access_token
//	  - run: ./scripts/check.sh {{token}}
//
// Features are opaque to the runner, which only reads Key and Tags.
package feature
