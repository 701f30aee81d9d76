package utils

const DefaultServiceName = "lore-anchor-waitlist"

func IsTracingEnabled() bool {
	return EnvBool("OTEL_TRACES_ENABLED", false)
}

func OTelServiceName() string {
	return EnvOr("OTEL_SERVICE_NAME", DefaultServiceName)
}
