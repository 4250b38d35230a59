package pipeline

import (
	"context"

	"zbridge/internal/logging"
	"zbridge/internal/workfile"
)

// Keys and values of the workfile instance kept in every scene.
const (
	WorkfileCreator = "io.zbridge.creators.workfile"
	WorkfileFamily  = "workfile"
	WorkfileVariant = "Main"

	keyID      = "id"
	keyCreator = "creator_identifier"
	keyFamily  = "family"
	keySubset  = "subset"
	keyVariant = "variant"
	keyAsset   = "asset"
	keyTask    = "task"

	instanceSchemaID = "pyblish.avalon.instance"
)

// CreateWorkfileInstance makes sure the scene holds exactly one workfile
// instance and that it matches the current asset and task. It reports
// whether the instance list changed.
func (p *Pipeline) CreateWorkfileInstance(ctx context.Context) (workfile.Instance, bool, error) {
	c := p.workfiles.Context()
	instances, err := p.workfiles.ListInstances(ctx)
	if err != nil {
		return nil, false, err
	}

	for i, inst := range instances {
		if creator, _ := inst[keyCreator].(string); creator != WorkfileCreator {
			continue
		}
		asset, _ := inst[keyAsset].(string)
		task, _ := inst[keyTask].(string)
		if asset == c.Asset && task == c.Task {
			return inst, false, nil
		}
		inst[keyAsset] = c.Asset
		inst[keyTask] = c.Task
		inst[keySubset] = subsetName()
		instances[i] = inst
		if err := p.workfiles.WriteInstances(ctx, instances); err != nil {
			return nil, false, err
		}
		p.logger.Info("workfile instance moved to context", logging.String("context", c.String()))
		return inst, true, nil
	}

	inst := workfile.Instance{
		keyID:      instanceSchemaID,
		keyCreator: WorkfileCreator,
		keyFamily:  WorkfileFamily,
		keySubset:  subsetName(),
		keyVariant: WorkfileVariant,
		keyAsset:   c.Asset,
		keyTask:    c.Task,
		"active":   true,
	}
	instances = append(instances, inst)
	if err := p.workfiles.WriteInstances(ctx, instances); err != nil {
		return nil, false, err
	}
	p.logger.Info("workfile instance created", logging.String("context", c.String()))
	return inst, true, nil
}

func subsetName() string {
	return WorkfileFamily + WorkfileVariant
}
