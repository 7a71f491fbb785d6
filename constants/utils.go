package constants

// celery task names
const TASK_EXECUTE string = "worker.execute"

// uri schemes, one per storage provider
const URI_SCHEME_ZEROG = "0g://"
const URI_SCHEME_MCS = "mcs://"
const URI_SCHEME_IPFS = "ipfs://"
const URI_SCHEME_MEMORY = "mem://"

const REDIS_RECEIPT_PREFIX = "RECEIPT:"
const REDIS_RECEIPT_TTL = 7 * 24 * 60 * 60

const K8S_JOB_NAME_PREFIX = "exec-"
const K8S_CONTAINER_NAME_PREFIX = "worker-"
const DOCKER_CONTAINER_NAME_PREFIX = "evidence-exec-"

const ENV_EXECUTION_INPUT = "EVIDENCE_INPUT"
const ENV_EXECUTION_FUNCTION = "EVIDENCE_FUNCTION"

const DEFAULT_ATTEMPT_TIMEOUT_SECONDS = 30
const DEFAULT_COMPUTE_TIMEOUT_SECONDS = 180
