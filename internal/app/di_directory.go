package app

import (
	"fmt"
	"sync"

	directoryRepository "github.com/allisson/lightldap/internal/directory/repository"
	directoryUseCase "github.com/allisson/lightldap/internal/directory/usecase"
)

// directoryComponents holds the directory store components of the container.
type directoryComponents struct {
	userRepository      directoryUseCase.UserRepository
	groupRepository     directoryUseCase.GroupRepository
	attributeRepository directoryUseCase.AttributeSchemaRepository
	backendHandler      directoryUseCase.BackendHandler
	bootstrapUseCase    directoryUseCase.BootstrapUseCase

	userRepositoryInit      sync.Once
	groupRepositoryInit     sync.Once
	attributeRepositoryInit sync.Once
	backendHandlerInit      sync.Once
	bootstrapUseCaseInit    sync.Once
}

// UserRepository returns the user repository for the configured dialect.
func (c *Container) UserRepository() (directoryUseCase.UserRepository, error) {
	var err error
	c.userRepositoryInit.Do(func() {
		c.userRepository, err = c.initUserRepository()
		if err != nil {
			c.initErrors["userRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["userRepository"]; exists {
		return nil, storedErr
	}
	return c.userRepository, nil
}

// GroupRepository returns the group repository for the configured dialect.
func (c *Container) GroupRepository() (directoryUseCase.GroupRepository, error) {
	var err error
	c.groupRepositoryInit.Do(func() {
		c.groupRepository, err = c.initGroupRepository()
		if err != nil {
			c.initErrors["groupRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["groupRepository"]; exists {
		return nil, storedErr
	}
	return c.groupRepository, nil
}

// AttributeSchemaRepository returns the attribute schema repository.
func (c *Container) AttributeSchemaRepository() (directoryUseCase.AttributeSchemaRepository, error) {
	var err error
	c.attributeRepositoryInit.Do(func() {
		c.attributeRepository, err = c.initAttributeSchemaRepository()
		if err != nil {
			c.initErrors["attributeRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["attributeRepository"]; exists {
		return nil, storedErr
	}
	return c.attributeRepository, nil
}

// BackendHandler returns the directory capability interface shared by the LDAP server
// and the HTTP API.
func (c *Container) BackendHandler() (directoryUseCase.BackendHandler, error) {
	var err error
	c.backendHandlerInit.Do(func() {
		c.backendHandler, err = c.initBackendHandler()
		if err != nil {
			c.initErrors["backendHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["backendHandler"]; exists {
		return nil, storedErr
	}
	return c.backendHandler, nil
}

// BootstrapUseCase returns the use case creating the administrator on first start.
func (c *Container) BootstrapUseCase() (directoryUseCase.BootstrapUseCase, error) {
	var err error
	c.bootstrapUseCaseInit.Do(func() {
		c.bootstrapUseCase, err = c.initBootstrapUseCase()
		if err != nil {
			c.initErrors["bootstrapUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["bootstrapUseCase"]; exists {
		return nil, storedErr
	}
	return c.bootstrapUseCase, nil
}

func (c *Container) initUserRepository() (directoryUseCase.UserRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for user repository: %w", err)
	}
	dialect, err := c.Dialect()
	if err != nil {
		return nil, err
	}
	return directoryRepository.NewSQLUserRepository(db, dialect), nil
}

func (c *Container) initGroupRepository() (directoryUseCase.GroupRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for group repository: %w", err)
	}
	dialect, err := c.Dialect()
	if err != nil {
		return nil, err
	}
	return directoryRepository.NewSQLGroupRepository(db, dialect), nil
}

func (c *Container) initAttributeSchemaRepository() (directoryUseCase.AttributeSchemaRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for attribute repository: %w", err)
	}
	dialect, err := c.Dialect()
	if err != nil {
		return nil, err
	}
	return directoryRepository.NewSQLAttributeSchemaRepository(db, dialect), nil
}

// initBackendHandler creates the backend handler wrapped with operation metrics.
func (c *Container) initBackendHandler() (directoryUseCase.BackendHandler, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for backend handler: %w", err)
	}

	userRepository, err := c.UserRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get user repository for backend handler: %w", err)
	}

	groupRepository, err := c.GroupRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get group repository for backend handler: %w", err)
	}

	attributeRepository, err := c.AttributeSchemaRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get attribute repository for backend handler: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for backend handler: %w", err)
	}

	handler := directoryUseCase.NewBackendHandler(txManager, userRepository, groupRepository, attributeRepository)
	return directoryUseCase.NewBackendHandlerWithMetrics(handler, businessMetrics), nil
}

func (c *Container) initBootstrapUseCase() (directoryUseCase.BootstrapUseCase, error) {
	backend, err := c.BackendHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get backend handler for bootstrap: %w", err)
	}

	passwordUseCase, err := c.PasswordUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get password use case for bootstrap: %w", err)
	}

	return directoryUseCase.NewBootstrapUseCase(backend, passwordUseCase, c.Logger()), nil
}
