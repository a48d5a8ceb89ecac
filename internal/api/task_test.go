package api

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"taskmanager/internal/model"

	"github.com/gin-gonic/gin"
)

// createProjectForTest 走完整的 HTTP 路径建一个项目。
func createProjectForTest(t *testing.T, s *Server, token, name string) model.Project {
	t.Helper()

	w := doJSON(t, s, http.MethodPost, "/api/project/", token, gin.H{"name": name})
	if w.Code != http.StatusOK {
		t.Fatalf("create project: %d: %s", w.Code, w.Body.String())
	}
	var project model.Project
	decodeBody(t, w, &project)
	return project
}

func TestCreateTask_DefaultTimeWindow(t *testing.T) {
	s := newTestServer(t)
	user := createUser(t, s, "alice@example.com", "Alice")
	token := tokenFor(t, s, user)
	project := createProjectForTest(t, s, token, "Window")

	before := time.Now().UTC()
	w := doJSON(t, s, http.MethodPost, "/api/task/", token, gin.H{
		"project_id": project.ID,
		"title":      "Write migration",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var task model.Task
	decodeBody(t, w, &task)

	if task.CreatedByID != user.ID {
		t.Fatalf("expected creator %d, got %d", user.ID, task.CreatedByID)
	}
	if task.StartedAt.Before(before.Add(-time.Second)) || task.StartedAt.After(time.Now().UTC().Add(time.Second)) {
		t.Fatalf("started_at %v not near now", task.StartedAt)
	}
	wantEnd := task.StartedAt.Add(7 * 24 * time.Hour)
	diff := task.EndsAt.Sub(wantEnd)
	if diff < -2*time.Second || diff > 2*time.Second {
		t.Fatalf("ends_at %v not 7 days after started_at %v", task.EndsAt, task.StartedAt)
	}
}

func TestCreateTask_ExplicitWindowAndAssignee(t *testing.T) {
	s := newTestServer(t)
	user := createUser(t, s, "alice@example.com", "Alice")
	assignee := createUser(t, s, "bob@example.com", "Bob")
	token := tokenFor(t, s, user)
	project := createProjectForTest(t, s, token, "Assigned")

	starts := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	ends := time.Date(2026, 9, 5, 18, 0, 0, 0, time.UTC)
	w := doJSON(t, s, http.MethodPost, "/api/task/", token, gin.H{
		"project_id":        project.ID,
		"title":             "Scoped work",
		"status":            "in review",
		"starts_at":         starts,
		"ends_at":           ends,
		"assign_to_user_id": assignee.ID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var task model.Task
	decodeBody(t, w, &task)

	if !task.StartedAt.Equal(starts) || !task.EndsAt.Equal(ends) {
		t.Fatalf("window mismatch: got [%v, %v]", task.StartedAt, task.EndsAt)
	}
	if task.AssignedUserID == nil || *task.AssignedUserID != assignee.ID {
		t.Fatalf("expected assignee %d, got %v", assignee.ID, task.AssignedUserID)
	}
	if task.Status != "in review" {
		t.Fatalf("expected status kept, got %q", task.Status)
	}
}

func TestCreateTask_ProjectNotFound(t *testing.T) {
	s := newTestServer(t)
	user := createUser(t, s, "alice@example.com", "Alice")
	token := tokenFor(t, s, user)

	w := doJSON(t, s, http.MethodPost, "/api/task/", token, gin.H{
		"project_id": 404,
		"title":      "Nowhere",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateTask_AssigneeNotFound(t *testing.T) {
	s := newTestServer(t)
	user := createUser(t, s, "alice@example.com", "Alice")
	token := tokenFor(t, s, user)
	project := createProjectForTest(t, s, token, "NoAssignee")

	w := doJSON(t, s, http.MethodPost, "/api/task/", token, gin.H{
		"project_id":        project.ID,
		"title":             "Unassignable",
		"assign_to_user_id": 999,
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateTask_UnresolvableCreator(t *testing.T) {
	s := newTestServer(t)
	user := createUser(t, s, "alice@example.com", "Alice")
	token := tokenFor(t, s, user)
	project := createProjectForTest(t, s, token, "Ghosted")

	// 认证通过但用户表里没有对应记录：这是 500，不是 404。
	w := doJSON(t, s, http.MethodPost, "/api/task/", ghostToken(t, s), gin.H{
		"project_id": project.ID,
		"title":      "Haunted",
	})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", w.Code, w.Body.String())
	}
}

func TestListTasks_UserTasksFilter(t *testing.T) {
	s := newTestServer(t)
	alice := createUser(t, s, "alice@example.com", "Alice")
	bob := createUser(t, s, "bob@example.com", "Bob")
	aliceToken := tokenFor(t, s, alice)
	bobToken := tokenFor(t, s, bob)
	project := createProjectForTest(t, s, aliceToken, "Filtered")

	// alice 创建的任务
	w := doJSON(t, s, http.MethodPost, "/api/task/", aliceToken, gin.H{
		"project_id": project.ID, "title": "created by alice",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create: %d: %s", w.Code, w.Body.String())
	}

	// bob 创建、指派给 alice 的任务
	w = doJSON(t, s, http.MethodPost, "/api/task/", bobToken, gin.H{
		"project_id": project.ID, "title": "assigned to alice", "assign_to_user_id": alice.ID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create: %d: %s", w.Code, w.Body.String())
	}

	// bob 创建、与 alice 无关的任务
	w = doJSON(t, s, http.MethodPost, "/api/task/", bobToken, gin.H{
		"project_id": project.ID, "title": "unrelated",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create: %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, s, http.MethodGet, "/api/task/?user_tasks=true", aliceToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var tasks []model.Task
	decodeBody(t, w, &tasks)

	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks for alice, got %d", len(tasks))
	}
	titles := map[string]bool{}
	for _, task := range tasks {
		titles[task.Title] = true
	}
	if !titles["created by alice"] || !titles["assigned to alice"] {
		t.Fatalf("unexpected task set: %v", titles)
	}
}

func TestListTasks_ByProject(t *testing.T) {
	s := newTestServer(t)
	user := createUser(t, s, "alice@example.com", "Alice")
	token := tokenFor(t, s, user)
	project := createProjectForTest(t, s, token, "ByProject")
	other := createProjectForTest(t, s, token, "Other")

	for i := 0; i < 2; i++ {
		w := doJSON(t, s, http.MethodPost, "/api/task/", token, gin.H{
			"project_id": project.ID, "title": fmt.Sprintf("task %d", i),
		})
		if w.Code != http.StatusOK {
			t.Fatalf("create: %d: %s", w.Code, w.Body.String())
		}
	}
	w := doJSON(t, s, http.MethodPost, "/api/task/", token, gin.H{
		"project_id": other.ID, "title": "elsewhere",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create: %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/task/?project_id=%d", project.ID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var tasks []model.Task
	decodeBody(t, w, &tasks)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}

	// 无 project_id 且未开启 user_tasks 时拒绝。
	w = doJSON(t, s, http.MethodGet, "/api/task/", token, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAssignUserToTask_Overwrites(t *testing.T) {
	s := newTestServer(t)
	user := createUser(t, s, "alice@example.com", "Alice")
	first := createUser(t, s, "bob@example.com", "Bob")
	second := createUser(t, s, "carol@example.com", "Carol")
	token := tokenFor(t, s, user)
	project := createProjectForTest(t, s, token, "Reassign")

	w := doJSON(t, s, http.MethodPost, "/api/task/", token, gin.H{
		"project_id": project.ID, "title": "handover", "assign_to_user_id": first.ID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create: %d: %s", w.Code, w.Body.String())
	}
	var task model.Task
	decodeBody(t, w, &task)

	w = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/task/%d", task.ID), token, gin.H{"user_id": second.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("assign: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var reassigned model.Task
	decodeBody(t, w, &reassigned)
	if reassigned.AssignedUserID == nil || *reassigned.AssignedUserID != second.ID {
		t.Fatalf("expected assignee %d, got %v", second.ID, reassigned.AssignedUserID)
	}
}

func TestUpdateTask_PatchSemantics(t *testing.T) {
	s := newTestServer(t)
	user := createUser(t, s, "alice@example.com", "Alice")
	token := tokenFor(t, s, user)
	project := createProjectForTest(t, s, token, "Patch")

	w := doJSON(t, s, http.MethodPost, "/api/task/", token, gin.H{
		"project_id": project.ID, "title": "original title", "status": "to do",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create: %d: %s", w.Code, w.Body.String())
	}
	var task model.Task
	decodeBody(t, w, &task)

	w = doJSON(t, s, http.MethodPatch, fmt.Sprintf("/api/task/%d", task.ID), token, gin.H{
		"title":  "",
		"status": "done",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var updated model.Task
	decodeBody(t, w, &updated)

	if updated.Title != "original title" {
		t.Fatalf("empty title should keep original, got %q", updated.Title)
	}
	if updated.Status != "done" {
		t.Fatalf("expected status done, got %q", updated.Status)
	}
}

func TestDeleteTask_ReturnsLastState(t *testing.T) {
	s := newTestServer(t)
	user := createUser(t, s, "alice@example.com", "Alice")
	token := tokenFor(t, s, user)
	project := createProjectForTest(t, s, token, "Doomed")

	w := doJSON(t, s, http.MethodPost, "/api/task/", token, gin.H{
		"project_id": project.ID, "title": "short lived",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create: %d: %s", w.Code, w.Body.String())
	}
	var task model.Task
	decodeBody(t, w, &task)

	w = doJSON(t, s, http.MethodDelete, fmt.Sprintf("/api/task/%d", task.ID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var deleted model.Task
	decodeBody(t, w, &deleted)
	if deleted.ID != task.ID || deleted.Title != "short lived" {
		t.Fatalf("expected last-known state in response, got %+v", deleted)
	}

	w = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/task/%d", task.ID), token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}

	w = doJSON(t, s, http.MethodDelete, fmt.Sprintf("/api/task/%d", task.ID), token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on double delete, got %d", w.Code)
	}
}

func TestTaskComments(t *testing.T) {
	s := newTestServer(t)
	alice := createUser(t, s, "alice@example.com", "Alice")
	bob := createUser(t, s, "bob@example.com", "Bob")
	aliceToken := tokenFor(t, s, alice)
	bobToken := tokenFor(t, s, bob)
	project := createProjectForTest(t, s, aliceToken, "Discussed")

	w := doJSON(t, s, http.MethodPost, "/api/task/", aliceToken, gin.H{
		"project_id": project.ID, "title": "talk about it",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create task: %d: %s", w.Code, w.Body.String())
	}
	var task model.Task
	decodeBody(t, w, &task)

	commentPath := fmt.Sprintf("/api/task/%d/comment", task.ID)
	for _, tc := range []struct {
		token string
		body  string
	}{
		{aliceToken, "first"},
		{bobToken, "second"},
	} {
		w = doJSON(t, s, http.MethodPost, commentPath, tc.token, gin.H{"body": tc.body})
		if w.Code != http.StatusOK {
			t.Fatalf("create comment: %d: %s", w.Code, w.Body.String())
		}
	}

	w = doJSON(t, s, http.MethodGet, commentPath, aliceToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list comments: %d: %s", w.Code, w.Body.String())
	}
	var comments []model.Comment
	decodeBody(t, w, &comments)

	if len(comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(comments))
	}
	if comments[0].Body != "first" || comments[1].Body != "second" {
		t.Fatalf("comments out of order: %+v", comments)
	}
	if comments[0].AuthorID != alice.ID || comments[1].AuthorID != bob.ID {
		t.Fatalf("author mismatch: %+v", comments)
	}
	if comments[1].Author == nil || comments[1].Author.Email != bob.Email {
		t.Fatal("expected author preloaded")
	}

	// 评论挂在不存在的任务上时 404。
	w = doJSON(t, s, http.MethodPost, "/api/task/999/comment", aliceToken, gin.H{"body": "lost"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
