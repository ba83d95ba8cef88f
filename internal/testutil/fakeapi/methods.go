package fakeapi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/preprocessing"
)

func (s *Server) register() {
	s.methods = map[string]method{
		"user.login":       {public: true, fn: s.userLogin},
		"user.create":      {fn: userCreate},
		"user.delete":      {fn: userDelete},
		"hostgroup.create": {fn: hostGroupCreate},
		"hostgroup.delete": {fn: deleter("hstgrp", "groupid", `DELETE FROM hosts_groups WHERE groupid = ?`)},
		"host.create":      {fn: hostCreate},
		"host.delete": {fn: deleter("hosts", "hostid",
			`DELETE FROM hosts_groups WHERE hostid = ?`,
			`DELETE FROM item_preproc WHERE itemid IN (SELECT itemid FROM items WHERE hostid = ?)`,
			`DELETE FROM items WHERE hostid = ?`)},
		"item.create":      {fn: itemCreate},
		"item.get":         {fn: itemGet},
		"item.delete":      {fn: deleter("items", "itemid", `DELETE FROM item_preproc WHERE itemid = ?`)},
		"connector.create": {fn: connectorCreate},
		"connector.delete": {fn: deleter("connector", "connectorid")},
		"service.create":   {fn: serviceCreate},
		"service.delete": {fn: deleter("services", "serviceid",
			`DELETE FROM services_links WHERE serviceupid = ? OR servicedownid = ?`)},
	}
}

func exists(ctx context.Context, tx *sql.Tx, table, idCol string, id int64) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = ?`, table, idCol), id).Scan(&n)
	return n > 0, err
}

func insert(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, *apiError) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, internalError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, internalError(err)
	}
	return id, nil
}

// deleter returns a delete method for table. Every extra statement runs
// once per id with the id bound to all its placeholders.
func deleter(table, idCol string, extra ...string) func(context.Context, *sql.Tx, int64, any) (any, *apiError) {
	return func(ctx context.Context, tx *sql.Tx, _ int64, params any) (any, *apiError) {
		ids, apiErr := idList(params)
		if apiErr != nil {
			return nil, apiErr
		}
		for _, id := range ids {
			ok, err := exists(ctx, tx, table, idCol, id)
			if err != nil {
				return nil, internalError(err)
			}
			if !ok {
				return nil, notFound()
			}
		}
		for _, id := range ids {
			for _, stmt := range extra {
				args := make([]any, strings.Count(stmt, "?"))
				for i := range args {
					args[i] = id
				}
				if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
					return nil, internalError(err)
				}
			}
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, table, idCol), id); err != nil {
				return nil, internalError(err)
			}
		}
		return map[string]any{idCol + "s": idStrings(ids)}, nil
	}
}

// ===========================================================================
// Users
// ===========================================================================

func (s *Server) userLogin(ctx context.Context, tx *sql.Tx, _ int64, params any) (any, *apiError) {
	m, ok := params.(map[string]any)
	if !ok {
		return nil, invalidParams(`Invalid parameter "/": an array is expected.`)
	}
	username, _ := m["username"].(string)
	password, _ := m["password"].(string)

	var userID int64
	var passwd string
	err := tx.QueryRowContext(ctx, `SELECT userid, passwd FROM users WHERE username = ?`, username).Scan(&userID, &passwd)
	if err != nil || passwd != password {
		return nil, invalidParams("Incorrect user name or password or account is temporarily blocked.")
	}
	return s.login(userID), nil
}

func userCreate(ctx context.Context, tx *sql.Tx, _ int64, params any) (any, *apiError) {
	objs, apiErr := objects(params)
	if apiErr != nil {
		return nil, apiErr
	}
	type user struct {
		username, passwd string
		roleid           int64
	}
	users := make([]user, len(objs))
	seen := make(map[string]bool)
	for i, fields := range objs {
		o := objectAt(i, fields)
		if err := o.only("username", "passwd", "roleid", "name", "surname", "usrgrps"); err != nil {
			return nil, err
		}
		username, err := o.text("username", true, 100)
		if err != nil {
			return nil, err
		}
		passwd, err := o.text("passwd", false, 255)
		if err != nil {
			return nil, err
		}
		roleid, err := o.integer("roleid", false, 1)
		if err != nil {
			return nil, err
		}
		if seen[username] {
			return nil, invalidParams(`Invalid parameter "%s": value (username)=(%s) already exists.`, o.path, username)
		}
		seen[username] = true
		users[i] = user{username: username, passwd: passwd, roleid: roleid}
	}

	ids := make([]int64, len(users))
	for i, u := range users {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE username = ?`, u.username).Scan(&n); err != nil {
			return nil, internalError(err)
		}
		if n > 0 {
			return nil, invalidParams(`User with username "%s" already exists.`, u.username)
		}
		id, apiErr := insert(ctx, tx, `INSERT INTO users (username, passwd, roleid) VALUES (?, ?, ?)`, u.username, u.passwd, u.roleid)
		if apiErr != nil {
			return nil, apiErr
		}
		ids[i] = id
	}
	return map[string]any{"userids": idStrings(ids)}, nil
}

func userDelete(ctx context.Context, tx *sql.Tx, caller int64, params any) (any, *apiError) {
	ids, apiErr := idList(params)
	if apiErr != nil {
		return nil, apiErr
	}
	for _, id := range ids {
		ok, err := exists(ctx, tx, "users", "userid", id)
		if err != nil {
			return nil, internalError(err)
		}
		if !ok {
			return nil, notFound()
		}
	}
	for _, id := range ids {
		if id == caller {
			return nil, invalidParams("User is not allowed to delete himself.")
		}
	}
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE userid = ?`, id); err != nil {
			return nil, internalError(err)
		}
	}
	return map[string]any{"userids": idStrings(ids)}, nil
}

// ===========================================================================
// Host groups and hosts
// ===========================================================================

func hostGroupCreate(ctx context.Context, tx *sql.Tx, _ int64, params any) (any, *apiError) {
	objs, apiErr := objects(params)
	if apiErr != nil {
		return nil, apiErr
	}
	names := make([]string, len(objs))
	seen := make(map[string]bool)
	for i, fields := range objs {
		o := objectAt(i, fields)
		if err := o.only("name"); err != nil {
			return nil, err
		}
		name, err := o.text("name", true, 255)
		if err != nil {
			return nil, err
		}
		if seen[name] {
			return nil, invalidParams(`Invalid parameter "%s": value (name)=(%s) already exists.`, o.path, name)
		}
		seen[name] = true
		names[i] = name
	}

	ids := make([]int64, len(names))
	for i, name := range names {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM hstgrp WHERE name = ?`, name).Scan(&n); err != nil {
			return nil, internalError(err)
		}
		if n > 0 {
			return nil, invalidParams(`Host group "%s" already exists.`, name)
		}
		id, apiErr := insert(ctx, tx, `INSERT INTO hstgrp (name) VALUES (?)`, name)
		if apiErr != nil {
			return nil, apiErr
		}
		ids[i] = id
	}
	return map[string]any{"groupids": idStrings(ids)}, nil
}

func hostCreate(ctx context.Context, tx *sql.Tx, _ int64, params any) (any, *apiError) {
	objs, apiErr := objects(params)
	if apiErr != nil {
		return nil, apiErr
	}
	ids := make([]int64, len(objs))
	for i, fields := range objs {
		o := objectAt(i, fields)
		if err := o.only("host", "name", "groups", "interfaces", "description"); err != nil {
			return nil, err
		}
		host, err := o.text("host", true, 128)
		if err != nil {
			return nil, err
		}
		groups, present, err := o.list("groups")
		if err != nil {
			return nil, err
		}
		if !present {
			return nil, o.missing("groups")
		}
		if len(groups) == 0 {
			return nil, invalidParams(`Invalid parameter "%s/groups": cannot be empty.`, o.path)
		}
		groupIDs, err := o.idsOf("groups", "groupid", groups)
		if err != nil {
			return nil, err
		}
		for _, gid := range groupIDs {
			ok, qerr := exists(ctx, tx, "hstgrp", "groupid", gid)
			if qerr != nil {
				return nil, internalError(qerr)
			}
			if !ok {
				return nil, notFound()
			}
		}

		var n int
		if qerr := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM hosts WHERE host = ?`, host).Scan(&n); qerr != nil {
			return nil, internalError(qerr)
		}
		if n > 0 {
			return nil, invalidParams(`Host with the same name "%s" already exists.`, host)
		}
		id, err := insert(ctx, tx, `INSERT INTO hosts (host) VALUES (?)`, host)
		if err != nil {
			return nil, err
		}
		for _, gid := range groupIDs {
			if _, err := insert(ctx, tx, `INSERT INTO hosts_groups (hostid, groupid) VALUES (?, ?)`, id, gid); err != nil {
				return nil, err
			}
		}
		ids[i] = id
	}
	return map[string]any{"hostids": idStrings(ids)}, nil
}

// ===========================================================================
// Items
// ===========================================================================

const itemTypeSSH = 13

func itemCreate(ctx context.Context, tx *sql.Tx, _ int64, params any) (any, *apiError) {
	objs, apiErr := objects(params)
	if apiErr != nil {
		return nil, apiErr
	}
	ids := make([]int64, len(objs))
	for i, fields := range objs {
		o := objectAt(i, fields)
		if err := o.only("hostid", "name", "key_", "type", "value_type", "delay",
			"username", "password", "params", "preprocessing", "description"); err != nil {
			return nil, err
		}
		raw, ok := fields["hostid"]
		if !ok {
			return nil, o.missing("hostid")
		}
		hostID, ok := toID(raw)
		if !ok {
			return nil, invalidParams(`Invalid parameter "%s/hostid": a number is expected.`, o.path)
		}
		var host string
		if err := tx.QueryRowContext(ctx, `SELECT host FROM hosts WHERE hostid = ?`, hostID).Scan(&host); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, notFound()
			}
			return nil, internalError(err)
		}

		name, err := o.text("name", true, 255)
		if err != nil {
			return nil, err
		}
		key, err := o.text("key_", true, 2048)
		if err != nil {
			return nil, err
		}
		typ, err := o.integer("type", true, 0)
		if err != nil {
			return nil, err
		}
		valueType, err := o.integer("value_type", true, 0)
		if err != nil {
			return nil, err
		}
		if err := o.between("value_type", valueType, 0, 4); err != nil {
			return nil, err
		}
		username, err := o.text("username", typ == itemTypeSSH, 255)
		if err != nil {
			return nil, err
		}
		password, err := o.text("password", false, 255)
		if err != nil {
			return nil, err
		}
		itemParams, err := o.text("params", false, 0)
		if err != nil {
			return nil, err
		}
		steps, err := o.steps()
		if err != nil {
			return nil, err
		}

		var n int
		if qerr := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE hostid = ? AND key_ = ?`, hostID, key).Scan(&n); qerr != nil {
			return nil, internalError(qerr)
		}
		if n > 0 {
			return nil, invalidParams(`An item with key "%s" already exists on the host "%s".`, key, host)
		}

		id, err := insert(ctx, tx,
			`INSERT INTO items (hostid, name, key_, type, value_type, params, username, password) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			hostID, name, key, typ, valueType, itemParams, username, password)
		if err != nil {
			return nil, err
		}
		for step, st := range preprocessing.Sort(steps) {
			if _, err := insert(ctx, tx,
				`INSERT INTO item_preproc (itemid, step, type, params, error_handler, error_handler_params) VALUES (?, ?, ?, ?, ?, ?)`,
				id, step+1, int(st.Type), st.Params, st.ErrorHandler, st.ErrorHandlerParams); err != nil {
				return nil, err
			}
		}
		ids[i] = id
	}
	return map[string]any{"itemids": idStrings(ids)}, nil
}

// steps reads and validates the preprocessing member.
func (o object) steps() ([]preprocessing.Step, *apiError) {
	l, _, apiErr := o.list("preprocessing")
	if apiErr != nil {
		return nil, apiErr
	}
	steps := make([]preprocessing.Step, len(l))
	for i, raw := range l {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, invalidParams(`Invalid parameter "%s/preprocessing/%d": an array is expected.`, o.path, i+1)
		}
		so := object{path: fmt.Sprintf("%s/preprocessing/%d", o.path, i+1), fields: m}
		if err := so.only("type", "params", "error_handler", "error_handler_params"); err != nil {
			return nil, err
		}
		typ, err := so.integer("type", true, 0)
		if err != nil {
			return nil, err
		}
		params, err := so.text("params", false, 0)
		if err != nil {
			return nil, err
		}
		handler, err := so.integer("error_handler", false, 0)
		if err != nil {
			return nil, err
		}
		handlerParams, err := so.text("error_handler_params", false, 0)
		if err != nil {
			return nil, err
		}
		steps[i] = preprocessing.Step{
			Type:               preprocessing.Type(typ),
			Params:             params,
			ErrorHandler:       int(handler),
			ErrorHandlerParams: handlerParams,
		}
	}
	if err := preprocessing.Validate(steps); err != nil {
		msg := err.Error()
		if se, ok := sserr.AsError(err); ok {
			msg = se.Message
		}
		return nil, invalidParams("%s", strings.Replace(msg, `"/1/`, `"`+o.path+`/`, 1))
	}
	return steps, nil
}

// itemGet returns items with their preprocessing steps in stored order.
// Numeric fields are strings, as in the real API.
func itemGet(ctx context.Context, tx *sql.Tx, _ int64, params any) (any, *apiError) {
	m, ok := params.(map[string]any)
	if !ok {
		return nil, invalidParams(`Invalid parameter "/": an array is expected.`)
	}
	query := `SELECT itemid, hostid, name, key_, type, value_type FROM items`
	var (
		where []string
		args  []any
	)
	for _, filter := range []struct{ param, column string }{{"itemids", "itemid"}, {"hostids", "hostid"}} {
		raw, ok := m[filter.param]
		if !ok {
			continue
		}
		list, ok := raw.([]any)
		if !ok {
			list = []any{raw}
		}
		marks := make([]string, 0, len(list))
		for i, v := range list {
			id, ok := toID(v)
			if !ok {
				return nil, invalidParams(`Invalid parameter "/%s/%d": a number is expected.`, filter.param, i+1)
			}
			marks = append(marks, "?")
			args = append(args, id)
		}
		if len(marks) == 0 {
			return []any{}, nil
		}
		where = append(where, fmt.Sprintf("%s IN (%s)", filter.column, strings.Join(marks, ", ")))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY itemid"

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, internalError(err)
	}
	type item struct {
		id                     int64
		hostID, typ, valueType int64
		name, key              string
	}
	var items []item
	for rows.Next() {
		var it item
		if err := rows.Scan(&it.id, &it.hostID, &it.name, &it.key, &it.typ, &it.valueType); err != nil {
			_ = rows.Close()
			return nil, internalError(err)
		}
		items = append(items, it)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, internalError(err)
	}

	out := make([]any, 0, len(items))
	for _, it := range items {
		steps, apiErr := storedSteps(ctx, tx, it.id)
		if apiErr != nil {
			return nil, apiErr
		}
		out = append(out, map[string]any{
			"itemid":        strconv.FormatInt(it.id, 10),
			"hostid":        strconv.FormatInt(it.hostID, 10),
			"name":          it.name,
			"key_":          it.key,
			"type":          strconv.FormatInt(it.typ, 10),
			"value_type":    strconv.FormatInt(it.valueType, 10),
			"preprocessing": steps,
		})
	}
	return out, nil
}

func storedSteps(ctx context.Context, tx *sql.Tx, itemID int64) ([]map[string]string, *apiError) {
	rows, err := tx.QueryContext(ctx,
		`SELECT type, params, error_handler, error_handler_params FROM item_preproc WHERE itemid = ? ORDER BY step`, itemID)
	if err != nil {
		return nil, internalError(err)
	}
	defer rows.Close()
	steps := []map[string]string{}
	for rows.Next() {
		var (
			typ, handler          int64
			params, handlerParams string
		)
		if err := rows.Scan(&typ, &params, &handler, &handlerParams); err != nil {
			return nil, internalError(err)
		}
		steps = append(steps, map[string]string{
			"type":                 strconv.FormatInt(typ, 10),
			"params":               params,
			"error_handler":        strconv.FormatInt(handler, 10),
			"error_handler_params": handlerParams,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, internalError(err)
	}
	return steps, nil
}

// ===========================================================================
// Connectors
// ===========================================================================

var timeUnit = regexp.MustCompile(`^([0-9]+)s?$`)

func connectorCreate(ctx context.Context, tx *sql.Tx, _ int64, params any) (any, *apiError) {
	objs, apiErr := objects(params)
	if apiErr != nil {
		return nil, apiErr
	}
	type connector struct {
		name, url, interval string
		maxAttempts         int64
	}
	conns := make([]connector, len(objs))
	seen := make(map[string]bool)
	for i, fields := range objs {
		o := objectAt(i, fields)
		if err := o.only("name", "url", "max_attempts", "attempt_interval", "description"); err != nil {
			return nil, err
		}
		name, err := o.text("name", true, 255)
		if err != nil {
			return nil, err
		}
		url, err := o.text("url", true, 2048)
		if err != nil {
			return nil, err
		}
		maxAttempts, err := o.integer("max_attempts", false, 1)
		if err != nil {
			return nil, err
		}
		if err := o.between("max_attempts", maxAttempts, 1, 5); err != nil {
			return nil, err
		}
		interval, err := o.text("attempt_interval", false, 32)
		if err != nil {
			return nil, err
		}
		if interval == "" {
			interval = "5s"
		}
		match := timeUnit.FindStringSubmatch(interval)
		if match == nil {
			return nil, invalidParams(`Invalid parameter "%s/attempt_interval": a time unit is expected.`, o.path)
		}
		seconds, _ := strconv.ParseInt(match[1], 10, 64)
		if err := o.between("attempt_interval", seconds, 0, 10); err != nil {
			return nil, err
		}
		if maxAttempts == 1 && seconds != 5 {
			return nil, invalidParams(`Invalid parameter "%s/attempt_interval": value must be "5s".`, o.path)
		}
		if seen[name] {
			return nil, invalidParams(`Invalid parameter "%s": value (name)=(%s) already exists.`, o.path, name)
		}
		seen[name] = true
		conns[i] = connector{name: name, url: url, interval: interval, maxAttempts: maxAttempts}
	}

	ids := make([]int64, len(conns))
	for i, c := range conns {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM connector WHERE name = ?`, c.name).Scan(&n); err != nil {
			return nil, internalError(err)
		}
		if n > 0 {
			return nil, invalidParams(`Connector "%s" already exists.`, c.name)
		}
		id, apiErr := insert(ctx, tx,
			`INSERT INTO connector (name, url, max_attempts, attempt_interval) VALUES (?, ?, ?, ?)`,
			c.name, c.url, c.maxAttempts, c.interval)
		if apiErr != nil {
			return nil, apiErr
		}
		ids[i] = id
	}
	return map[string]any{"connectorids": idStrings(ids)}, nil
}

// ===========================================================================
// Services
// ===========================================================================

func serviceCreate(ctx context.Context, tx *sql.Tx, _ int64, params any) (any, *apiError) {
	objs, apiErr := objects(params)
	if apiErr != nil {
		return nil, apiErr
	}
	ids := make([]int64, len(objs))
	for i, fields := range objs {
		o := objectAt(i, fields)
		if err := o.only("name", "algorithm", "sortorder", "parents", "description"); err != nil {
			return nil, err
		}
		name, err := o.text("name", true, 128)
		if err != nil {
			return nil, err
		}
		algorithm, err := o.integer("algorithm", true, 0)
		if err != nil {
			return nil, err
		}
		if algorithm < 0 || algorithm > 2 {
			return nil, invalidParams(`Invalid parameter "%s/algorithm": value must be one of 0, 1, 2.`, o.path)
		}
		sortorder, err := o.integer("sortorder", true, 0)
		if err != nil {
			return nil, err
		}
		if err := o.between("sortorder", sortorder, 0, 999); err != nil {
			return nil, err
		}
		parents, _, err := o.list("parents")
		if err != nil {
			return nil, err
		}
		parentIDs, err := o.idsOf("parents", "serviceid", parents)
		if err != nil {
			return nil, err
		}
		for _, pid := range parentIDs {
			ok, qerr := exists(ctx, tx, "services", "serviceid", pid)
			if qerr != nil {
				return nil, internalError(qerr)
			}
			if !ok {
				return nil, notFound()
			}
		}

		id, err := insert(ctx, tx, `INSERT INTO services (name, algorithm, sortorder) VALUES (?, ?, ?)`, name, algorithm, sortorder)
		if err != nil {
			return nil, err
		}
		for _, pid := range parentIDs {
			if _, err := insert(ctx, tx, `INSERT INTO services_links (serviceupid, servicedownid) VALUES (?, ?)`, pid, id); err != nil {
				return nil, err
			}
		}
		ids[i] = id
	}
	return map[string]any{"serviceids": idStrings(ids)}, nil
}
