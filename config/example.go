package config

import (
	"github.com/revolution1/unitgate/types"
)

// ExampleDocument serves the ASGI application on 8000, its metrics
// application on 8001 and proxies the control socket status on 8181.
const ExampleDocument = `{
    "settings": {
        "http": {
            "max_body_size": 8388608
        }
    },
    "listeners": {
        "*:8000": {
            "pass": "routes/main"
        },
        "*:8001": {
            "pass": "routes/metrics"
        },
        "*:8181": {
            "pass": "routes/status"
        }
    },
    "routes": {
        "main": [
            {
                "match": {
                    "uri": ["/*"]
                },
                "action": {
                    "pass": "applications/app"
                }
            }
        ],
        "metrics": [
            {
                "match": {
                    "uri": ["/metrics", "/metrics/*"]
                },
                "action": {
                    "pass": "applications/metrics"
                }
            }
        ],
        "status": [
            {
                "match": {
                    "uri": ["/status", "/status/*"]
                },
                "action": {
                    "proxy": "http://unix:/var/run/control.unit.sock"
                }
            }
        ]
    },
    "applications": {
        "app": {
            "type": "python 3.11",
            "processes": 4,
            "working_directory": "/app",
            "path": "/app",
            "module": "main",
            "callable": "app",
            "protocol": "asgi",
            "user": "app",
            "limits": {
                "requests": 10000
            }
        },
        "metrics": {
            "type": "python 3.11",
            "processes": 1,
            "working_directory": "/app",
            "path": "/app",
            "module": "metrics",
            "callable": "app",
            "protocol": "asgi",
            "user": "app",
            "limits": {
                "requests": 10000
            }
        }
    }
}
`

// Example parses ExampleDocument, it panics if the document is broken.
func Example() *types.Config {
	conf, err := Parse([]byte(ExampleDocument))
	if err != nil {
		panic(err)
	}
	return conf
}
