package env

import "os"

type Environment string

const (
	Production  Environment = "production"
	Development Environment = "development"
	Test        Environment = "test"
)

const environmentKey = "ENVIRONMENT"

// Get defaults to development when ENVIRONMENT is unset, so the CLI works
// out of a fresh checkout.
func Get() Environment {
	environment, ok := os.LookupEnv(environmentKey)
	if !ok || environment == "" {
		return Development
	}

	switch environment {
	case "production":
		return Production
	case "development":
		return Development
	case "test":
		return Test
	default:
		panic("Invalid environment is set")
	}
}

func SetTest() {
	if err := os.Setenv(environmentKey, string(Test)); err != nil {
		panic(err)
	}
}
