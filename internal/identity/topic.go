package identity

// Topic naming is wire-visible and must match across requester and solver
// deployments exactly. The request channel uses the literal "rfq" segment;
// response channels substitute the requester's bucket.
const (
	topicNamespace = "iLayer"
	topicVersion   = "1"
	topicFormat    = "proto"

	requestSegment = "rfq"
)

// RequestTopic returns the well-known broadcast topic for quote requests.
func RequestTopic() string {
	return TopicFor(requestSegment)
}

// ResponseTopic returns the private per-request topic for a bucket.
func ResponseTopic(bucket string) string {
	return TopicFor(bucket)
}

// TopicFor builds the namespaced topic string for one channel segment.
// Same segment in, same topic out — always, across processes.
func TopicFor(segment string) string {
	return "/" + topicNamespace + "/" + topicVersion + "/" + segment + "/" + topicFormat
}
