package compute

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chaoschain/go-evidence-provider/constants"
	"github.com/chaoschain/go-evidence-provider/internal/models"
	"github.com/chaoschain/go-evidence-provider/internal/yaml"
	"github.com/filswan/go-mcs-sdk/mcs/api/common/logs"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	labelManagedBy  = "app.kubernetes.io/managed-by"
	labelExecution  = "evidence.chaoschain.io/execution"
	managerName     = "evidence-provider"
	maxLogBytes     = 16 << 20
	jobPollInterval = 2 * time.Second
)

// K8sBackend runs each execution as a one-shot batch Job.
type K8sBackend struct {
	client       kubernetes.Interface
	namespace    string
	catalog      *yaml.Catalog
	pollInterval time.Duration
}

func NewK8sBackend(namespace string, catalog *yaml.Catalog) (*K8sBackend, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		cfg, err = clientcmd.BuildConfigFromFlags("", clientcmd.RecommendedHomeFile)
		if err != nil {
			return nil, fmt.Errorf("build kube config: %w", err)
		}
	}
	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build clientset: %w", err)
	}
	return newK8sBackend(cs, namespace, catalog)
}

func newK8sBackend(client kubernetes.Interface, namespace string, catalog *yaml.Catalog) (*K8sBackend, error) {
	if catalog == nil {
		return nil, fmt.Errorf("k8s backend needs a function catalog")
	}
	if namespace == "" {
		namespace = metav1.NamespaceDefault
	}
	return &K8sBackend{
		client:       client,
		namespace:    namespace,
		catalog:      catalog,
		pollInterval: jobPollInterval,
	}, nil
}

func (k *K8sBackend) Provider() models.ComputeProvider {
	return models.ComputeK8s
}

func (k *K8sBackend) Submit(ctx context.Context, req *Request) (*Submission, error) {
	spec, ok := k.catalog.Lookup(req.FunctionName)
	if !ok || spec.Image == "" {
		return nil, fmt.Errorf("%w: %s has no image", ErrUnknownFunction, req.FunctionName)
	}

	jobName := constants.K8S_JOB_NAME_PREFIX + strings.ToLower(req.ID)
	job := k.buildJob(jobName, spec, req)
	if _, err := k.client.BatchV1().Jobs(k.namespace).Create(ctx, job, metav1.CreateOptions{}); err != nil {
		return nil, fmt.Errorf("create job %s: %w", jobName, err)
	}
	logs.GetLogger().Infof("job %s created for %s", jobName, req.FunctionName)
	defer k.deleteJob(jobName)

	if err := k.waitForJob(ctx, jobName); err != nil {
		return nil, err
	}
	output, err := k.fetchJobLogs(ctx, jobName)
	if err != nil {
		return nil, err
	}
	return &Submission{RawOutput: output, Timestamp: time.Now().UTC()}, nil
}

func (k *K8sBackend) buildJob(jobName string, spec yaml.FunctionSpec, req *Request) *batchv1.Job {
	backoffLimit := int32(0)
	podLabels := map[string]string{
		labelManagedBy: managerName,
		labelExecution: jobName,
	}
	env := make([]corev1.EnvVar, 0, len(spec.Env)+2)
	for _, kv := range executionEnv(spec, req) {
		name, value, _ := strings.Cut(kv, "=")
		env = append(env, corev1.EnvVar{Name: name, Value: value})
	}

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      jobName,
			Namespace: k.namespace,
			Labels:    podLabels,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: &backoffLimit,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: podLabels},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{
						{
							Name:    constants.K8S_CONTAINER_NAME_PREFIX + "0",
							Image:   spec.Image,
							Command: spec.Command,
							Env:     env,
						},
					},
				},
			},
		},
	}
}

func (k *K8sBackend) waitForJob(ctx context.Context, jobName string) error {
	ticker := time.NewTicker(k.pollInterval)
	defer ticker.Stop()
	for {
		job, err := k.client.BatchV1().Jobs(k.namespace).Get(ctx, jobName, metav1.GetOptions{})
		if err != nil {
			return fmt.Errorf("get job %s: %w", jobName, err)
		}
		if job.Status.Succeeded > 0 {
			return nil
		}
		if job.Status.Failed > 0 {
			return fmt.Errorf("job %s failed", jobName)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (k *K8sBackend) fetchJobLogs(ctx context.Context, jobName string) ([]byte, error) {
	selector := labels.SelectorFromSet(map[string]string{labelExecution: jobName})
	pods, err := k.client.CoreV1().Pods(k.namespace).List(ctx, metav1.ListOptions{LabelSelector: selector.String()})
	if err != nil {
		return nil, fmt.Errorf("list pods of %s: %w", jobName, err)
	}
	if len(pods.Items) == 0 {
		return nil, fmt.Errorf("no pod found for job %s", jobName)
	}

	stream, err := k.client.CoreV1().Pods(k.namespace).GetLogs(pods.Items[0].Name, &corev1.PodLogOptions{}).Stream(ctx)
	if err != nil {
		return nil, fmt.Errorf("stream logs of %s: %w", pods.Items[0].Name, err)
	}
	defer stream.Close()
	data, err := io.ReadAll(io.LimitReader(stream, maxLogBytes))
	if err != nil {
		return nil, err
	}
	return cleanOutput(data), nil
}

func (k *K8sBackend) deleteJob(jobName string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	propagation := metav1.DeletePropagationBackground
	err := k.client.BatchV1().Jobs(k.namespace).Delete(ctx, jobName, metav1.DeleteOptions{PropagationPolicy: &propagation})
	if err != nil {
		logs.GetLogger().Warnf("delete job %s failed, error: %v", jobName, err)
	}
}
