// Package maintenance redirects cluster traffic to a maintenance page while a backup runs.
package maintenance

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/youwol/datamanager/kernel/model"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

type Mode interface {
	Enter(ctx context.Context) error
	Exit(ctx context.Context) error
}

// With runs fn inside the maintenance mode. Exit is attempted even when Enter or fn fail.
func With(ctx context.Context, mode Mode, fn func() error) (err error) {
	defer func() {
		// restore even if the run was interrupted
		if exitErr := mode.Exit(context.WithoutCancel(ctx)); exitErr != nil {
			if err == nil {
				err = exitErr
			} else {
				logrus.WithError(exitErr).Error("unable to leave maintenance mode")
			}
		}
	}()
	if err := mode.Enter(ctx); err != nil {
		return err
	}
	return fn()
}

type Noop struct{}

func (Noop) Enter(context.Context) error {
	logrus.Info("maintenance mode disabled, nothing to set up")
	return nil
}

func (Noop) Exit(context.Context) error {
	logrus.Info("maintenance mode disabled, nothing to tear down")
	return nil
}

// Cluster swaps an Ingress class and a ConfigMap value for their maintenance values, then
// restores the originals.
type Cluster struct {
	Client           kubernetes.Interface
	Namespace        string
	IngressName      string
	IngressClassName string
	ConfigMapName    string
	ConfigMapKey     string
	ConfigMapValue   string
	// Settle is waited after entering, for the ingress controller to pick up the change.
	Settle time.Duration

	entered           bool
	originalClassName *string
	originalValue     string
	originalHasValue  bool
}

// New returns a Noop when maintenance is disabled.
func New(cfg model.MaintenanceConfig) (Mode, error) {
	if !cfg.Enable {
		return Noop{}, nil
	}
	if err := model.RequireAll(
		model.EnvMaintenanceNamespace, cfg.Namespace,
		model.EnvMaintenanceIngressName, cfg.IngressName,
		model.EnvMaintenanceIngressClass, cfg.IngressClassName,
		model.EnvMaintenanceConfigMapName, cfg.ConfigMapName,
		model.EnvMaintenanceConfigMapKey, cfg.ConfigMapKey,
		model.EnvMaintenanceConfigMapVal, cfg.ConfigMapValue,
	); err != nil {
		return nil, err
	}
	client, err := NewClient(cfg.KubeConfig, cfg.KubeContext)
	if err != nil {
		return nil, err
	}
	return &Cluster{
		Client:           client,
		Namespace:        cfg.Namespace,
		IngressName:      cfg.IngressName,
		IngressClassName: cfg.IngressClassName,
		ConfigMapName:    cfg.ConfigMapName,
		ConfigMapKey:     cfg.ConfigMapKey,
		ConfigMapValue:   cfg.ConfigMapValue,
		Settle:           5 * time.Second,
	}, nil
}

// NewClient uses the kube config when a path or a context is given, the in-cluster
// configuration otherwise.
func NewClient(kubeConfig, kubeContext string) (kubernetes.Interface, error) {
	var config *rest.Config
	var err error
	if kubeConfig == "" && kubeContext == "" {
		config, err = rest.InClusterConfig()
	} else {
		rules := clientcmd.NewDefaultClientConfigLoadingRules()
		rules.ExplicitPath = kubeConfig
		config, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules,
			&clientcmd.ConfigOverrides{CurrentContext: kubeContext}).ClientConfig()
	}
	if err != nil {
		return nil, errors.Wrap(err, "unable to load kubernetes configuration")
	}
	client, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create kubernetes client")
	}
	return client, nil
}

func (c *Cluster) Enter(ctx context.Context) error {
	configMaps := c.Client.CoreV1().ConfigMaps(c.Namespace)
	cm, err := configMaps.Get(ctx, c.ConfigMapName, metav1.GetOptions{})
	if err != nil {
		return errors.Wrapf(err, "unable to get config map '%s/%s'", c.Namespace, c.ConfigMapName)
	}
	ingresses := c.Client.NetworkingV1().Ingresses(c.Namespace)
	ingress, err := ingresses.Get(ctx, c.IngressName, metav1.GetOptions{})
	if err != nil {
		return errors.Wrapf(err, "unable to get ingress '%s/%s'", c.Namespace, c.IngressName)
	}

	c.originalValue, c.originalHasValue = cm.Data[c.ConfigMapKey]
	c.originalClassName = ingress.Spec.IngressClassName
	c.entered = true

	if err := c.setConfigMapValue(ctx, &c.ConfigMapValue); err != nil {
		return err
	}
	className := c.IngressClassName
	if err := c.setIngressClassName(ctx, &className); err != nil {
		return err
	}
	logrus.Infof("maintenance mode on (ingress '%s' class '%s')", c.IngressName, c.IngressClassName)

	select {
	case <-ctx.Done():
		return errors.Wrap(model.ErrInterrupted, "entering maintenance mode")
	case <-time.After(c.Settle):
	}
	return nil
}

// Exit restores the values read by Enter. It does nothing if Enter did not read them.
func (c *Cluster) Exit(ctx context.Context) error {
	if !c.entered {
		return nil
	}
	var value *string
	if c.originalHasValue {
		value = &c.originalValue
	}
	cmErr := c.setConfigMapValue(ctx, value)
	ingressErr := c.setIngressClassName(ctx, c.originalClassName)
	if cmErr != nil {
		return cmErr
	}
	if ingressErr != nil {
		return ingressErr
	}
	c.entered = false
	logrus.Info("maintenance mode off")
	return nil
}

// setConfigMapValue removes the key when value is nil.
func (c *Cluster) setConfigMapValue(ctx context.Context, value *string) error {
	configMaps := c.Client.CoreV1().ConfigMaps(c.Namespace)
	cm, err := configMaps.Get(ctx, c.ConfigMapName, metav1.GetOptions{})
	if err != nil {
		return errors.Wrapf(err, "unable to get config map '%s/%s'", c.Namespace, c.ConfigMapName)
	}
	if value == nil {
		delete(cm.Data, c.ConfigMapKey)
	} else {
		if cm.Data == nil {
			cm.Data = make(map[string]string)
		}
		cm.Data[c.ConfigMapKey] = *value
	}
	if _, err := configMaps.Update(ctx, cm, metav1.UpdateOptions{}); err != nil {
		return errors.Wrapf(err, "unable to update config map '%s/%s'", c.Namespace, c.ConfigMapName)
	}
	return nil
}

func (c *Cluster) setIngressClassName(ctx context.Context, className *string) error {
	ingresses := c.Client.NetworkingV1().Ingresses(c.Namespace)
	ingress, err := ingresses.Get(ctx, c.IngressName, metav1.GetOptions{})
	if err != nil {
		return errors.Wrapf(err, "unable to get ingress '%s/%s'", c.Namespace, c.IngressName)
	}
	ingress.Spec.IngressClassName = className
	if _, err := ingresses.Update(ctx, ingress, metav1.UpdateOptions{}); err != nil {
		return errors.Wrapf(err, "unable to update ingress '%s/%s'", c.Namespace, c.IngressName)
	}
	return nil
}
