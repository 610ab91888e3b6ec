package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/momoworks/momo-ops/pkg/client"
)

// fixtures is the YAML layout accepted by "momoctl seed". Locations are
// referenced by key and managers by email, so a file can be written before
// any ids exist. A manager email may name an employee created earlier in the
// file or one that already exists on the server.
type fixtures struct {
	Stores           []locationFixture `yaml:"stores"`
	ProductionHouses []locationFixture `yaml:"production_houses"`
	Employees        []employeeFixture `yaml:"employees"`
	Items            []itemFixture     `yaml:"items"`
}

type locationFixture struct {
	Key                  string `yaml:"key"`
	client.LocationInput `yaml:",inline"`
}

type employeeFixture struct {
	ManagerEmail         string `yaml:"manager_email"`
	Location             string `yaml:"location"`
	client.EmployeeInput `yaml:",inline"`
}

type itemFixture struct {
	Location         string `yaml:"location"`
	client.ItemInput `yaml:",inline"`
}

func loadFixtures(path string) (*fixtures, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fx fixtures
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &fx, nil
}

// seed creates everything in fx in dependency order and reports each record
// on out. It stops at the first failure.
func seed(ctx context.Context, c *client.Client, fx *fixtures, out io.Writer) error {
	locations := map[string]string{}
	create := func(kind string, list []locationFixture, fn func(context.Context, client.LocationInput) (*client.Location, error)) error {
		for _, f := range list {
			loc, err := fn(ctx, f.LocationInput)
			if err != nil {
				return fmt.Errorf("%s %q: %w", kind, f.Name, err)
			}
			if f.Key != "" {
				locations[f.Key] = loc.ID
			}
			fmt.Fprintf(out, "%s %s %s\n", kind, loc.ID, loc.Name)
		}
		return nil
	}
	if err := create("store", fx.Stores, c.CreateStore); err != nil {
		return err
	}
	if err := create("production_house", fx.ProductionHouses, c.CreateProductionHouse); err != nil {
		return err
	}

	resolve := func(key string) (string, error) {
		if key == "" {
			return "", nil
		}
		if id, ok := locations[key]; ok {
			return id, nil
		}
		return "", fmt.Errorf("unknown location key %q", key)
	}

	employees := map[string]string{}
	loaded := false
	manager := func(email string) (string, error) {
		if id, ok := employees[email]; ok {
			return id, nil
		}
		if !loaded {
			existing, err := c.Employees(ctx, "")
			if err != nil {
				return "", err
			}
			for _, e := range existing {
				if _, ok := employees[e.Email]; !ok {
					employees[e.Email] = e.ID
				}
			}
			loaded = true
			if id, ok := employees[email]; ok {
				return id, nil
			}
		}
		return "", fmt.Errorf("manager %q not found; list new managers before their reports", email)
	}

	for _, f := range fx.Employees {
		in := f.EmployeeInput
		loc, err := resolve(f.Location)
		if err != nil {
			return fmt.Errorf("employee %q: %w", in.Email, err)
		}
		if loc != "" {
			in.LocationID = loc
		}
		if f.ManagerEmail != "" {
			id, err := manager(strings.ToLower(f.ManagerEmail))
			if err != nil {
				return fmt.Errorf("employee %q: %w", in.Email, err)
			}
			in.ManagerID = id
		}
		e, err := c.CreateEmployee(ctx, in)
		if err != nil {
			return fmt.Errorf("employee %q: %w", in.Email, err)
		}
		employees[e.Email] = e.ID
		fmt.Fprintf(out, "employee %s %s\n", e.ID, e.Email)
	}

	for _, f := range fx.Items {
		in := f.ItemInput
		loc, err := resolve(f.Location)
		if err != nil {
			return fmt.Errorf("item %q: %w", in.SKU, err)
		}
		if loc != "" {
			in.LocationID = loc
		}
		item, err := c.CreateItem(ctx, in)
		if err != nil {
			return fmt.Errorf("item %q: %w", in.SKU, err)
		}
		fmt.Fprintf(out, "item %s %s\n", item.ID, item.SKU)
	}
	return nil
}
